package identity

// Reference lists for uploader verification. Channel ids and handles give
// exact matches; the name lists back the fuzzy fallback.

// channelIDMap maps verified YouTube channel ids to their organization.
var channelIDMap = map[string]string{
	"UCq5H-cwWLtLDvSGM_M2oXOw": "삼성증권",
	"UCGHDq5A2Y3xiXYq3WL2eJrw": "미래에셋증권",
	"UCxKzSX4W2ZzD1Wf5p8qQw1A": "키움증권",
	"UC7V8mZbQ3tYkq0N1xN4p9Zg": "한국투자증권",
	"UCEW2kYn9R5Jxq8rT0cM1s6w": "NH투자증권",
	"UCmBphJXS1rTnNYvYmYkQ2PQ": "KB증권",
	"UCtq3J0sX5W8bR9z1mY7vK4A": "신한투자증권",
}

// handleMap maps lowercase channel handles (without the @ prefix) to their
// organization.
var handleMap = map[string]string{
	"samsungpop":            "삼성증권",
	"miraeassetsecurities":  "미래에셋증권",
	"kiwoom_official":       "키움증권",
	"truefriend_koreainv":   "한국투자증권",
	"nhqv_official":         "NH투자증권",
	"kbsec_official":        "KB증권",
	"shinhansec":            "신한투자증권",
	"hanafinancialgroup":    "하나증권",
	"meritzfinancialgroup":  "메리츠증권",
	"daishinsecurities":     "대신증권",
}

// institutionalNames are licensed financial institutions and public bodies.
var institutionalNames = []string{
	"삼성증권",
	"미래에셋증권",
	"KB증권",
	"NH투자증권",
	"한국투자증권",
	"키움증권",
	"신한투자증권",
	"하나증권",
	"대신증권",
	"메리츠증권",
	"유안타증권",
	"한화투자증권",
	"교보증권",
	"IBK투자증권",
	"삼성자산운용",
	"미래에셋자산운용",
	"KB자산운용",
	"한국거래소",
	"금융감독원",
	"금융투자협회",
}

// quasiAdvisorNames are registered quasi-investment-advisory operators.
// These may lawfully publish content but are subject to the compliance rules
// scanned in compliance.go.
var quasiAdvisorNames = []string{
	"슈퍼개미주식연구소",
	"주식공장",
	"불기둥스탁",
	"대박주클럽",
	"황금알투자클럽",
	"머니스톰주식방송",
	"급등주포착단",
	"세력주연구소",
	"차트박사스쿨",
	"전업투자자아카데미",
}
