package filter

import "testing"

func TestEvaluate_AcceptsStrategicVerbPath(t *testing.T) {
	// One politics keyword plus a strategic verb: score 4, topic score 2.
	res := Evaluate("Правительство подписало соглашение", "")
	if !res.Accepted {
		t.Fatalf("expected accept, got reason %q score %d", res.Reason, res.Score)
	}
	if res.Topic != TopicPolitics {
		t.Errorf("expected politics topic, got %s", res.Topic)
	}
	if res.Reason != ReasonAccepted {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
}

func TestEvaluate_AcceptsTopicPathWithoutVerb(t *testing.T) {
	// Three economy keywords, no strategic verb: score 6, topic score 6.
	res := Evaluate("Инфляция ускорилась на фоне дефицита бюджета", "")
	if !res.Accepted {
		t.Fatalf("expected accept, got reason %q score %d", res.Reason, res.Score)
	}
	if res.Topic != TopicEconomy {
		t.Errorf("expected economy topic, got %s", res.Topic)
	}
}

func TestEvaluate_RejectsVerbPathBelowTopicMinimum(t *testing.T) {
	// A strategic verb alone carries no topic evidence.
	res := Evaluate("Компания объявила о новом продукте", "")
	if res.Accepted {
		t.Fatalf("expected reject, got score %d", res.Score)
	}
	if res.Reason != ReasonLowStrategic {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
}

func TestEvaluate_RejectsUnrelatedText(t *testing.T) {
	res := Evaluate("Погода в выходные улучшится", "Синоптики обещают солнце")
	if res.Accepted {
		t.Fatalf("expected reject")
	}
	if res.Score != 0 {
		t.Errorf("expected zero score, got %d", res.Score)
	}
}

func TestEvaluate_LowPriorityPenaltyOutweighsTopicHit(t *testing.T) {
	// Politics keyword +2, sports noise -3.
	res := Evaluate("Президент посетил матч", "")
	if res.Accepted {
		t.Fatalf("expected reject, got score %d", res.Score)
	}
	if res.Score >= 0 {
		t.Errorf("expected negative score, got %d", res.Score)
	}
}

func TestEvaluate_ClickbaitPenaltyBreaksTopicPath(t *testing.T) {
	accepted := Evaluate("Инфляция ускорилась на фоне дефицита бюджета", "")
	if !accepted.Accepted {
		t.Fatalf("baseline should be accepted")
	}

	res := Evaluate("Шок: инфляция ускорилась на фоне дефицита бюджета", "")
	if res.Accepted {
		t.Fatalf("expected clickbait penalty to drop below threshold, score %d", res.Score)
	}
	if res.Score != accepted.Score-2 {
		t.Errorf("expected score %d, got %d", accepted.Score-2, res.Score)
	}
}

func TestEvaluate_ConflictTacticalVetoPrecedesThresholds(t *testing.T) {
	// Scores high enough for the topic path, still vetoed.
	res := Evaluate("Армия объявила об эскалации конфликта", "Уничтожено 20 единиц техники")
	if res.Accepted {
		t.Fatalf("expected tactical veto")
	}
	if res.Reason != ReasonConflictDetail {
		t.Errorf("expected %q, got %q", ReasonConflictDetail, res.Reason)
	}
	if res.Topic != TopicConflict {
		t.Errorf("expected conflict topic, got %s", res.Topic)
	}
}

func TestEvaluate_TacticalDetailOutsideConflictTopicNotVetoed(t *testing.T) {
	// The veto only applies when the winning topic is conflict.
	res := Evaluate("Центробанк утвердил бюджет, прогноз по инфляции понижен", "В регионе ликвидирован дефицит топлива")
	if res.Reason == ReasonConflictDetail {
		t.Fatalf("veto must not fire for topic %s", res.Topic)
	}
}

func TestEvaluate_TopicTieBreakFollowsPriorityOrder(t *testing.T) {
	// One economy hit, one politics hit: economy wins the tie.
	res := Evaluate("Парламент обсудил бюджет", "")
	if res.Topic != TopicEconomy {
		t.Errorf("expected economy on tie, got %s", res.Topic)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	title := "Правительство утвердило бюджет после переговоров"
	summary := "Министерство финансов согласовало параметры госдолга"
	first := Evaluate(title, summary)
	for i := 0; i < 10; i++ {
		got := Evaluate(title, summary)
		if got != first {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}
