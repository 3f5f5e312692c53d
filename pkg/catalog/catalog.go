// Package catalog 提供进程级只读的国家、语言与地区组查询表。
// 所有表在 New 时构建完成，运行期间不允许修改。
package catalog

import (
	"sort"
	"strings"

	"github.com/orxan-hv/press_radar/pkg/model"
)

// countries ISO 3166-1 alpha-2 国家码到显示名
var countries = map[string]string{
	// 欧洲
	"AL": "Albania", "AD": "Andorra", "AM": "Armenia", "AT": "Austria",
	"AZ": "Azerbaijan", "BY": "Belarus", "BE": "Belgium",
	"BA": "Bosnia and Herzegovina", "BG": "Bulgaria", "HR": "Croatia",
	"CY": "Cyprus", "CZ": "Czech Republic", "DK": "Denmark", "EE": "Estonia",
	"FI": "Finland", "FR": "France", "GE": "Georgia", "DE": "Germany",
	"GR": "Greece", "HU": "Hungary", "IS": "Iceland", "IE": "Ireland",
	"IT": "Italy", "KZ": "Kazakhstan", "XK": "Kosovo", "LV": "Latvia",
	"LT": "Lithuania", "LU": "Luxembourg", "MK": "North Macedonia",
	"MT": "Malta", "MD": "Moldova", "ME": "Montenegro", "NL": "Netherlands",
	"NO": "Norway", "PL": "Poland", "PT": "Portugal", "RO": "Romania",
	"RU": "Russia", "RS": "Serbia", "SK": "Slovakia", "SI": "Slovenia",
	"ES": "Spain", "SE": "Sweden", "CH": "Switzerland", "TR": "Turkey",
	"UA": "Ukraine", "GB": "United Kingdom",

	// 亚洲
	"AF": "Afghanistan", "BH": "Bahrain", "BD": "Bangladesh", "CN": "China",
	"IN": "India", "ID": "Indonesia", "IR": "Iran", "IQ": "Iraq",
	"IL": "Israel", "JP": "Japan", "JO": "Jordan", "KW": "Kuwait",
	"KG": "Kyrgyzstan", "LB": "Lebanon", "MY": "Malaysia", "MN": "Mongolia",
	"MM": "Myanmar", "NP": "Nepal", "OM": "Oman", "PK": "Pakistan",
	"PS": "Palestine", "PH": "Philippines", "QA": "Qatar",
	"SA": "Saudi Arabia", "SG": "Singapore", "KR": "South Korea",
	"LK": "Sri Lanka", "SY": "Syria", "TW": "Taiwan", "TJ": "Tajikistan",
	"TH": "Thailand", "TM": "Turkmenistan", "AE": "United Arab Emirates",
	"UZ": "Uzbekistan", "VN": "Vietnam", "YE": "Yemen",

	// 美洲
	"US": "United States", "CA": "Canada", "MX": "Mexico", "BR": "Brazil",
	"AR": "Argentina", "CL": "Chile", "CO": "Colombia", "PE": "Peru",
	"VE": "Venezuela", "EC": "Ecuador", "BO": "Bolivia", "PY": "Paraguay",
	"UY": "Uruguay",

	// 非洲
	"DZ": "Algeria", "EG": "Egypt", "ET": "Ethiopia", "GH": "Ghana",
	"KE": "Kenya", "LY": "Libya", "MA": "Morocco", "NG": "Nigeria",
	"ZA": "South Africa", "SD": "Sudan", "TN": "Tunisia", "UG": "Uganda",

	// 大洋洲
	"AU": "Australia", "NZ": "New Zealand",
}

// regionGroups 地区组展开表，组名使用固定词表
var regionGroups = map[string][]string{
	"CAUCASUS":       {"AZ", "GE", "AM"},
	"CIS":            {"RU", "BY", "KZ", "KG", "TJ", "TM", "UZ", "MD", "AM", "AZ"},
	"EU":             {"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL", "PL", "PT", "RO", "SK", "SI", "ES", "SE"},
	"MIDDLE_EAST":    {"SA", "AE", "QA", "KW", "BH", "OM", "YE", "JO", "LB", "SY", "IQ", "IR", "IL", "PS"},
	"ARAB_WORLD":     {"SA", "AE", "QA", "KW", "BH", "OM", "YE", "JO", "LB", "SY", "IQ", "PS", "EG", "DZ", "MA", "TN", "LY", "SD"},
	"GULF_STATES":    {"SA", "AE", "QA", "KW", "BH", "OM"},
	"CENTRAL_ASIA":   {"KZ", "KG", "TJ", "TM", "UZ"},
	"SOUTH_ASIA":     {"IN", "PK", "BD", "LK", "NP"},
	"SOUTHEAST_ASIA": {"TH", "VN", "MY", "SG", "ID", "PH", "MM"},
	"EAST_ASIA":      {"CN", "JP", "KR", "TW", "MN"},
	"NORTH_AMERICA":  {"US", "CA", "MX"},
	"SOUTH_AMERICA":  {"BR", "AR", "CL", "CO", "PE", "VE", "EC", "BO", "PY", "UY"},
	"MAJOR_POWERS":   {"US", "CN", "RU", "GB", "FR", "DE", "JP", "IN"},
	// 意图解析失败时的默认来源组：周边国家优先
	"NEIGHBORS": {"TR", "RU", "IR", "GE", "AM"},
}

// languageBinding 国家码到主要媒体语言的绑定
type languageBinding struct {
	Code string
	Name string
}

var languages = map[string]languageBinding{
	"AZ": {"az", "Azerbaijani"}, "AM": {"hy", "Armenian"}, "GE": {"ka", "Georgian"},
	"TR": {"tr", "Turkish"}, "RU": {"ru", "Russian"}, "BY": {"ru", "Russian"},
	"UA": {"uk", "Ukrainian"}, "IR": {"fa", "Persian"}, "AF": {"fa", "Persian"},
	"KZ": {"kk", "Kazakh"}, "KG": {"ky", "Kyrgyz"}, "TJ": {"tg", "Tajik"},
	"TM": {"tk", "Turkmen"}, "UZ": {"uz", "Uzbek"},
	"SA": {"ar", "Arabic"}, "AE": {"ar", "Arabic"}, "QA": {"ar", "Arabic"},
	"KW": {"ar", "Arabic"}, "BH": {"ar", "Arabic"}, "OM": {"ar", "Arabic"},
	"YE": {"ar", "Arabic"}, "JO": {"ar", "Arabic"}, "LB": {"ar", "Arabic"},
	"SY": {"ar", "Arabic"}, "IQ": {"ar", "Arabic"}, "PS": {"ar", "Arabic"},
	"EG": {"ar", "Arabic"}, "DZ": {"ar", "Arabic"}, "MA": {"ar", "Arabic"},
	"TN": {"ar", "Arabic"}, "LY": {"ar", "Arabic"}, "SD": {"ar", "Arabic"},
	"IL": {"he", "Hebrew"},
	"DE": {"de", "German"}, "AT": {"de", "German"}, "CH": {"de", "German"},
	"FR": {"fr", "French"}, "BE": {"fr", "French"},
	"ES": {"es", "Spanish"}, "MX": {"es", "Spanish"}, "AR": {"es", "Spanish"},
	"CL": {"es", "Spanish"}, "CO": {"es", "Spanish"}, "PE": {"es", "Spanish"},
	"VE": {"es", "Spanish"}, "EC": {"es", "Spanish"}, "BO": {"es", "Spanish"},
	"PY": {"es", "Spanish"}, "UY": {"es", "Spanish"},
	"PT": {"pt", "Portuguese"}, "BR": {"pt", "Portuguese"},
	"IT": {"it", "Italian"}, "GR": {"el", "Greek"},
	"PL": {"pl", "Polish"}, "CZ": {"cs", "Czech"}, "SK": {"sk", "Slovak"},
	"HU": {"hu", "Hungarian"}, "RO": {"ro", "Romanian"}, "BG": {"bg", "Bulgarian"},
	"RS": {"sr", "Serbian"}, "HR": {"hr", "Croatian"}, "SI": {"sl", "Slovenian"},
	"NL": {"nl", "Dutch"}, "SE": {"sv", "Swedish"}, "NO": {"no", "Norwegian"},
	"DK": {"da", "Danish"}, "FI": {"fi", "Finnish"}, "IS": {"is", "Icelandic"},
	"EE": {"et", "Estonian"}, "LV": {"lv", "Latvian"}, "LT": {"lt", "Lithuanian"},
	"MD": {"ro", "Romanian"},
	"CN": {"zh", "Chinese"}, "TW": {"zh", "Chinese"}, "JP": {"ja", "Japanese"},
	"KR": {"ko", "Korean"}, "MN": {"mn", "Mongolian"},
	"IN": {"hi", "Hindi"}, "PK": {"ur", "Urdu"}, "BD": {"bn", "Bengali"},
	"LK": {"si", "Sinhala"}, "NP": {"ne", "Nepali"},
	"TH": {"th", "Thai"}, "VN": {"vi", "Vietnamese"}, "ID": {"id", "Indonesian"},
	"MY": {"ms", "Malay"}, "MM": {"my", "Burmese"}, "PH": {"tl", "Filipino"},
}

// subjectTranslations 监测对象在各语言中的称呼，用于回退查询
var subjectTranslations = map[string]map[string][]string{
	"AZ": {
		"en": {"Azerbaijan", "Azerbaijani", "Baku"},
		"ru": {"Азербайджан", "азербайджанский", "Баку"},
		"tr": {"Azerbaycan", "Azerbaycanlı", "Bakü"},
		"fa": {"آذربایجان", "آذری", "باکو"},
		"ar": {"أذربيجان", "أذربيجاني", "باكو"},
		"ka": {"აზერბაიჯანი", "ბაქო"},
		"hy": {"Ադրբեջան", "Բաքու"},
		"de": {"Aserbaidschan", "Baku"},
		"fr": {"Azerbaïdjan", "Bakou"},
		"zh": {"阿塞拜疆", "巴库"},
	},
	"GE": {
		"en": {"Georgia", "Georgian", "Tbilisi"},
		"ru": {"Грузия", "грузинский", "Тбилиси"},
		"ka": {"საქართველო", "თბილისი"},
	},
	"AM": {
		"en": {"Armenia", "Armenian", "Yerevan"},
		"ru": {"Армения", "армянский", "Ереван"},
		"hy": {"Հայաստան", "Երևան"},
	},
	"TR": {
		"en": {"Turkey", "Turkish", "Ankara"},
		"ru": {"Турция", "турецкий", "Анкара"},
		"tr": {"Türkiye", "Türk", "Ankara"},
	},
	"RU": {
		"en": {"Russia", "Russian", "Moscow"},
		"ru": {"Россия", "российский", "Москва"},
	},
	"US": {
		"en": {"United States", "USA", "Washington"},
		"ru": {"США", "американский", "Вашингтон"},
	},
}

// Catalog 只读查询服务，注入到需要国家/地区信息的组件
type Catalog struct{}

// New 创建目录实例
func New() *Catalog {
	return &Catalog{}
}

// Has 判断国家码是否存在
func (c *Catalog) Has(code string) bool {
	_, ok := countries[normalize(code)]
	return ok
}

// Subject 按国家码构造监测对象，未知码返回 false
func (c *Catalog) Subject(code string) (model.Subject, bool) {
	code = normalize(code)
	name, ok := countries[code]
	if !ok {
		return model.Subject{}, false
	}
	return model.Subject{Code: code, Name: name}, true
}

// Region 按国家码构造来源地区，附带语言绑定，未知码返回 false
func (c *Catalog) Region(code string) (model.SourceRegion, bool) {
	code = normalize(code)
	name, ok := countries[code]
	if !ok {
		return model.SourceRegion{}, false
	}
	lang, ok := languages[code]
	if !ok {
		lang = languageBinding{"en", "English"}
	}
	return model.SourceRegion{
		Code:         code,
		Name:         name,
		Language:     lang.Code,
		LanguageName: lang.Name,
	}, true
}

// Group 展开地区组为来源地区列表，未知组返回 nil
func (c *Catalog) Group(name string) []model.SourceRegion {
	codes, ok := regionGroups[normalize(name)]
	if !ok {
		return nil
	}
	regions := make([]model.SourceRegion, 0, len(codes))
	for _, code := range codes {
		if r, ok := c.Region(code); ok {
			regions = append(regions, r)
		}
	}
	return regions
}

// GroupNames 返回全部地区组名，按字典序，用于提示词中的固定词表
func (c *Catalog) GroupNames() []string {
	names := make([]string, 0, len(regionGroups))
	for name := range regionGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expand 将混合的国家码与地区组名展开为去重后的来源地区列表，
// 未知标识一律静默丢弃，顺序保持首次出现顺序
func (c *Catalog) Expand(tokens []string) []model.SourceRegion {
	var out []model.SourceRegion
	seen := make(map[string]bool)
	add := func(r model.SourceRegion) {
		if !seen[r.Code] {
			seen[r.Code] = true
			out = append(out, r)
		}
	}
	for _, tok := range tokens {
		if regions := c.Group(tok); regions != nil {
			for _, r := range regions {
				add(r)
			}
			continue
		}
		if r, ok := c.Region(tok); ok {
			add(r)
		}
	}
	return out
}

// SubjectTerms 返回监测对象在指定语言中的称呼，无翻译时回退到国家显示名
func (c *Catalog) SubjectTerms(code, language string) []string {
	code = normalize(code)
	if byLang, ok := subjectTranslations[code]; ok {
		if terms, ok := byLang[language]; ok {
			return terms
		}
		if terms, ok := byLang["en"]; ok {
			return terms
		}
	}
	if name, ok := countries[code]; ok {
		return []string{name}
	}
	return []string{code}
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
