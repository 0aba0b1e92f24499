package query

import (
	"strings"
	"time"
	"unicode"
)

// Fallback confidence band. The cap keeps every rule-based parse visibly
// below a well-formed AI parse so callers can see the degraded path.
const (
	fallbackFloor = 0.15
	fallbackCeil  = 0.75
)

const keywordWeight = 0.3

// RuleParser is the deterministic interpretation path. It has no external
// dependencies, never errors, and its scan cost is bounded by the query
// length limits enforced before parsing.
type RuleParser struct {
	resolver *Resolver
	tz       *time.Location
}

// NewRuleParser constructs the fallback parser.
func NewRuleParser(resolver *Resolver, tz *time.Location) *RuleParser {
	if tz == nil {
		tz = time.UTC
	}
	return &RuleParser{resolver: resolver, tz: tz}
}

var intentKeywords = map[Intent][]string{
	IntentWeatherAdvice: {
		"umbrella", "what to wear", "should i", "wear", "advice", "recommend",
		"suggest", "bring", "雨傘", "帶傘", "建議", "該穿", "穿什麼", "會下雨", "下雨嗎",
		"傘", "持っていく", "着る",
	},
	IntentHistoricalWeather: {
		"yesterday", "last week", "last month", "was it", "did it", "history",
		"historical", "昨天", "上週", "上周", "昨日", "先週", "過去",
	},
	IntentWeatherForecast: {
		"tomorrow", "forecast", "next week", "will it", "later", "tonight",
		"明天", "明日", "後天", "明後日", "下週", "下周", "来週", "預報", "予報",
	},
	IntentCurrentWeather: {
		"now", "currently", "right now", "today", "現在", "今天", "今日", "天氣", "天気",
	},
	IntentLocationSearch: {
		"where is", "find", "locate", "which city", "在哪", "哪裡", "どこ",
	},
}

var metricKeywords = map[Metric][]string{
	MetricPrecipitation: {"rain", "precipitation", "snow", "shower", "下雨", "降雨", "降水", "雨", "雪"},
	MetricWind:          {"wind", "breeze", "gust", "風"},
	MetricTemperature:   {"temperature", "hot", "cold", "warm", "degrees", "氣溫", "温度", "氣温", "熱", "冷"},
	MetricHumidity:      {"humidity", "humid", "濕度", "湿度"},
	MetricPressure:      {"pressure", "氣壓", "気圧"},
	MetricVisibility:    {"visibility", "fog", "能見度", "霧"},
	MetricUV:            {"uv", "sunscreen", "紫外線", "防曬"},
	MetricAirQuality:    {"air quality", "aqi", "pollution", "空氣品質", "空気"},
	MetricFeelsLike:     {"feels like", "體感", "体感"},
	MetricConditions:    {"weather", "sunny", "cloudy", "conditions", "天氣", "天気", "晴", "陰"},
}

var placeDictionary = map[string]struct{}{
	"taipei": {}, "kaohsiung": {}, "taichung": {}, "tainan": {}, "hsinchu": {},
	"tokyo": {}, "osaka": {}, "kyoto": {}, "singapore": {}, "hong kong": {},
	"london": {}, "paris": {}, "new york": {}, "san francisco": {}, "seattle": {},
	"sydney": {}, "berlin": {}, "beijing": {}, "shanghai": {}, "seoul": {},
	"台北": {}, "高雄": {}, "台中": {}, "台南": {}, "新竹": {}, "香港": {},
	"東京": {}, "大阪": {}, "京都": {}, "北京": {}, "上海": {}, "新加坡": {},
}

var latinStopwords = map[string]struct{}{
	"i": {}, "what": {}, "whats": {}, "will": {}, "is": {}, "the": {}, "how": {},
	"should": {}, "do": {}, "does": {}, "can": {}, "in": {}, "at": {}, "on": {},
	"tomorrow": {}, "today": {}, "yesterday": {}, "weather": {}, "forecast": {},
	"rain": {}, "wind": {}, "next": {}, "last": {}, "this": {}, "it": {},
}

// Parse interprets the query with keyword heuristics. It never fails; a
// query with no recognizable signal still yields a low-confidence default.
func (p *RuleParser) Parse(queryText, contextText string) ParsedQuery {
	combined := strings.TrimSpace(queryText + " " + contextText)
	lowered := strings.ToLower(combined)

	location := p.extractLocation(combined)
	intent := p.classifyIntent(lowered)
	timeScope := p.resolver.Resolve(combined, p.tz)
	metrics := p.extractMetrics(lowered)

	parsed := ParsedQuery{
		OriginalQuery: queryText,
		Location:      location,
		Intent:        intent,
		TimeScope:     timeScope,
		Metrics:       metrics,
		Preferences:   detectPreferences(combined),
		Confidence:    aggregateConfidence(location, intent, timeScope),
	}
	return parsed.Normalize()
}

func aggregateConfidence(location LocationInfo, intent WeatherIntent, scope TimeScope) float64 {
	sum := intent.Confidence + scope.Confidence
	count := 2.0
	if !location.Empty() {
		sum += location.Confidence
		count++
	}
	avg := sum / count
	if avg < fallbackFloor {
		return fallbackFloor
	}
	if avg > fallbackCeil {
		return fallbackCeil
	}
	return avg
}

func (p *RuleParser) classifyIntent(lowered string) WeatherIntent {
	scores := make(map[Intent]float64, len(intentKeywords))
	for intent, keywords := range intentKeywords {
		for _, kw := range keywords {
			if containsKeyword(lowered, kw) {
				scores[intent] += keywordWeight
			}
		}
		if scores[intent] > 1 {
			scores[intent] = 1
		}
	}

	best := IntentCurrentWeather
	bestScore := 0.0
	for intent, score := range scores {
		if score > bestScore || (score == bestScore && intent.Specificity() > best.Specificity()) {
			best, bestScore = intent, score
		}
	}
	if bestScore == 0 {
		// No signal at all: default to current conditions.
		return WeatherIntent{Primary: IntentCurrentWeather, Confidence: 0.4}
	}

	var secondary []Intent
	for intent, score := range scores {
		if intent != best && score > 0 {
			secondary = append(secondary, intent)
		}
	}
	sortBySpecificity(secondary)
	confidence := 0.4 + bestScore/2
	if confidence > 0.9 {
		confidence = 0.9
	}
	return WeatherIntent{Primary: best, Secondary: secondary, Confidence: confidence}
}

func sortBySpecificity(intents []Intent) {
	for i := 1; i < len(intents); i++ {
		for j := i; j > 0 && intents[j].Specificity() > intents[j-1].Specificity(); j-- {
			intents[j], intents[j-1] = intents[j-1], intents[j]
		}
	}
}

func (p *RuleParser) extractMetrics(lowered string) []Metric {
	ordered := []Metric{
		MetricTemperature, MetricHumidity, MetricPrecipitation, MetricWind,
		MetricPressure, MetricVisibility, MetricUV, MetricAirQuality,
		MetricConditions, MetricFeelsLike,
	}
	var out []Metric
	for _, metric := range ordered {
		for _, kw := range metricKeywords[metric] {
			if containsKeyword(lowered, kw) {
				out = append(out, metric)
				break
			}
		}
	}
	if len(out) == 0 {
		// Downstream consumers always receive a non-empty metric set.
		out = []Metric{MetricTemperature, MetricConditions}
	}
	return out
}

func (p *RuleParser) extractLocation(text string) LocationInfo {
	if name, ok := dictionaryHit(text); ok {
		return LocationInfo{Name: name, Confidence: 0.8}
	}
	if name := capitalizedRun(text); name != "" {
		return LocationInfo{Name: name, Confidence: 0.5}
	}
	if name := cjkCandidate(text); name != "" {
		return LocationInfo{Name: name, Confidence: 0.4}
	}
	return LocationInfo{}
}

func dictionaryHit(text string) (string, bool) {
	lowered := strings.ToLower(text)
	best := ""
	for place := range placeDictionary {
		if strings.Contains(lowered, place) && len(place) > len(best) {
			best = place
		}
	}
	if best == "" {
		return "", false
	}
	if idx := strings.Index(lowered, best); idx >= 0 {
		return text[idx : idx+len(best)], true
	}
	return best, true
}

// capitalizedRun finds the first run of capitalized Latin words that is not
// a sentence opener or a known non-place word.
func capitalizedRun(text string) string {
	words := strings.Fields(text)
	var run []string
	flush := func() string {
		if len(run) == 0 {
			return ""
		}
		return strings.Join(run, " ")
	}
	for i, word := range words {
		clean := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		if clean == "" {
			if out := flush(); out != "" {
				return out
			}
			run = run[:0]
			continue
		}
		first := []rune(clean)[0]
		_, stop := latinStopwords[strings.ToLower(clean)]
		if unicode.IsUpper(first) && first < 128 && !stop && i > 0 {
			run = append(run, clean)
			continue
		}
		if out := flush(); out != "" {
			return out
		}
		run = run[:0]
	}
	return flush()
}

// cjkCandidate trims known non-place tokens off a contiguous Han run and
// keeps a short remainder as a location guess.
func cjkCandidate(text string) string {
	var runs []string
	var current []rune
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			current = append(current, r)
			continue
		}
		if len(current) > 0 {
			runs = append(runs, string(current))
			current = nil
		}
	}
	if len(current) > 0 {
		runs = append(runs, string(current))
	}

	for _, run := range runs {
		trimmed := trimNonPlaceTokens(run)
		if n := len([]rune(trimmed)); n >= 2 && n <= 8 {
			return trimmed
		}
	}
	return ""
}

var cjkNonPlace = []string{
	"明後日", "會下雨", "下雨嗎", "穿什麼", "明天", "明日", "昨天", "昨日", "今天", "今日",
	"後天", "下週", "下周", "上週", "上周", "来週", "先週", "天氣", "天気", "下雨", "降雨",
	"預報", "予報", "現在", "氣溫", "温度", "濕度", "建議", "雨傘", "帶傘", "會", "嗎", "的",
	"雨", "風", "嗰",
}

func trimNonPlaceTokens(run string) string {
	out := run
	for changed := true; changed; {
		changed = false
		for _, tok := range cjkNonPlace {
			if strings.HasPrefix(out, tok) {
				out = strings.TrimPrefix(out, tok)
				changed = true
			}
			if strings.HasSuffix(out, tok) {
				out = strings.TrimSuffix(out, tok)
				changed = true
			}
		}
	}
	return out
}

func detectPreferences(text string) Preferences {
	prefs := Preferences{}
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			prefs.Language = "zh"
			break
		}
		if unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			prefs.Language = "ja"
			break
		}
	}
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "fahrenheit"), strings.Contains(lowered, "°f"):
		prefs.Unit = "fahrenheit"
	case strings.Contains(lowered, "celsius"), strings.Contains(lowered, "°c"), strings.Contains(lowered, "攝氏"):
		prefs.Unit = "celsius"
	}
	return prefs
}
