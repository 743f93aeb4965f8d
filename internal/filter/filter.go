// Package filter scores free text for strategic relevance. Evaluate is a
// pure function: the same title and summary always produce the same
// verdict, score and topic.
package filter

import (
	"regexp"
	"strings"
)

// Topic is the closed set of digest topics. The declaration order is the
// tie-break order for topic assignment: economy, politics, international,
// conflict.
type Topic int

const (
	TopicEconomy Topic = iota
	TopicPolitics
	TopicInternational
	TopicConflict
	topicCount
)

func (t Topic) String() string {
	switch t {
	case TopicEconomy:
		return "economy"
	case TopicPolitics:
		return "politics"
	case TopicInternational:
		return "international"
	case TopicConflict:
		return "conflict"
	}
	return "unknown"
}

// Localized label used in the rendered digest body.
func (t Topic) Label() string {
	switch t {
	case TopicEconomy:
		return "Экономика"
	case TopicPolitics:
		return "Политика"
	case TopicInternational:
		return "Международка"
	case TopicConflict:
		return "Конфликты"
	}
	return "Прочее"
}

// Topics lists all topics in priority order.
func Topics() []Topic {
	return []Topic{TopicEconomy, TopicPolitics, TopicInternational, TopicConflict}
}

// Rejection reasons form a closed set; they are persisted verbatim.
const (
	ReasonAccepted       = "релевантно"
	ReasonLowStrategic   = "низкая стратегическая значимость"
	ReasonConflictDetail = "тактические детали конфликта"
)

// Result of evaluating one item. Topic is assigned even on rejection.
type Result struct {
	Accepted bool
	Reason   string
	Score    int
	Topic    Topic
}

const (
	topicMatchWeight   = 2
	strategicVerbBonus = 2
	lowPriorityPenalty = 3
	clickbaitPenalty   = 2
	verbPathMinScore   = 4
	verbPathMinTopic   = 2
	topicPathMinScore  = 5
	topicPathMinTopic  = 4
)

var topicPatterns = map[Topic][]*regexp.Regexp{
	TopicEconomy: compileAll(
		`ввп`, `инфляц`, `ставк[аи]`, `центробанк`, `бюджет`, `налог`, `безработиц`, `дефицит`, `профицит`,
		`промпроизвод`, `экспорт`, `импорт`, `госдолг`, `торгов[а-я ]*баланс`, `opec|опек`, `эмбарго`, `swift`,
	),
	TopicPolitics: compileAll(
		`президент`, `правительств`, `парламент`, `госдум`, `совфед`, `указ`, `постановлен`, `закон`, `ратификац`,
		`совбез`, `кабинет министров`, `минист[её]рств`,
	),
	TopicInternational: compileAll(
		`международ`, `саммит`, `оон`, `ес`, `нато`, `мид`, `санкц`, `переговор`, `двусторон`, `многосторон`,
	),
	TopicConflict: compileAll(
		`конфликт`, `войн`, `операц`, `перемири`, `фронт`, `эскалац`, `деэскалац`,
	),
}

// Verbs signalling a completed state-level action rather than chatter.
var strategicVerbPatterns = compileAll(
	`объяв`, `утверд`, `подписа`, `ратифицир`, `принял`, `постановил`, `согласовал`, `заключил`, `ввел|ввёл`,
)

var lowPriorityPatterns = compileAll(
	`дтп`, `пожар`, `задержан`, `убийств`, `шоу`, `знаменит`, `твиттер`, `telegram-канал`, `локальн`, `район`,
	`област[ьи]`, `матч`, `происшеств`, `муниципаль`, `местн[а-я ]*власт`, `бытов`,
)

var conflictTacticalPatterns = compileAll(
	`уничтожено`, `ликвидирован`, `потер[ьяи]`, `число погиб`, `единиц техники`, `ранен[оы]`, `штурм`, `дронов уничтож`,
)

var clickbaitPatterns = compileAll(
	`шок`, `сенсац`, `срочно`, `невероят`, `взорвал[оаи]`, `скандал`, `чудо`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Evaluate scores title+summary and decides accept/reject.
//
// Every topic keyword hit adds 2 to the topic score and 2 to the global
// score. A strategic verb adds a flat bonus once. Local-noise matches
// subtract 3 each, clickbait 2 each. The winning topic is the highest
// topic score, ties broken by declaration order. A conflict item with
// tactical detail is vetoed outright. Otherwise accept when either
// threshold path holds:
//
//	score >= 4 && topicScore >= 2 && strategic verb present, or
//	score >= 5 && topicScore >= 4.
func Evaluate(title, summary string) Result {
	text := strings.ToLower(title + " " + summary)

	var topicScores [topicCount]int
	score := 0

	for topic, patterns := range topicPatterns {
		for _, re := range patterns {
			if re.MatchString(text) {
				topicScores[topic] += topicMatchWeight
				score += topicMatchWeight
			}
		}
	}

	hasStrategicVerb := false
	for _, re := range strategicVerbPatterns {
		if re.MatchString(text) {
			hasStrategicVerb = true
			score += strategicVerbBonus
			break
		}
	}

	for _, re := range lowPriorityPatterns {
		if re.MatchString(text) {
			score -= lowPriorityPenalty
		}
	}
	for _, re := range clickbaitPatterns {
		if re.MatchString(text) {
			score -= clickbaitPenalty
		}
	}

	topic := TopicEconomy
	for _, t := range Topics() {
		if topicScores[t] > topicScores[topic] {
			topic = t
		}
	}

	// Hard veto, independent of any score threshold.
	if topic == TopicConflict {
		for _, re := range conflictTacticalPatterns {
			if re.MatchString(text) {
				return Result{Accepted: false, Reason: ReasonConflictDetail, Score: score, Topic: topic}
			}
		}
	}

	topicScore := topicScores[topic]
	verbPath := score >= verbPathMinScore && topicScore >= verbPathMinTopic && hasStrategicVerb
	topicPath := score >= topicPathMinScore && topicScore >= topicPathMinTopic
	if verbPath || topicPath {
		return Result{Accepted: true, Reason: ReasonAccepted, Score: score, Topic: topic}
	}
	return Result{Accepted: false, Reason: ReasonLowStrategic, Score: score, Topic: topic}
}
