package memory

// Vocabulary holds the language-specific tokens used when an event or action
// is rendered without explicit wording.
type Vocabulary struct {
	// Currently is the default predicate ("currently", "is").
	Currently string `json:"currently" yaml:"currently"`

	// Idle is the default object.
	Idle string `json:"idle" yaml:"idle"`

	// Finished labels an action whose window has elapsed.
	Finished string `json:"finished" yaml:"finished"`

	// InProgress labels an action that is still running.
	InProgress string `json:"in_progress" yaml:"in_progress"`
}

var (
	// Chinese is the default vocabulary.
	Chinese = Vocabulary{
		Currently:  "此时",
		Idle:       "空闲",
		Finished:   "已完成",
		InProgress: "进行中",
	}

	// English is the English vocabulary.
	English = Vocabulary{
		Currently:  "is",
		Idle:       "idle",
		Finished:   "finished",
		InProgress: "in progress",
	}
)

// VocabularyFor returns the vocabulary for a locale tag ("zh" or "en").
// Unknown tags fall back to Chinese.
func VocabularyFor(locale string) Vocabulary {
	switch locale {
	case "en", "en_US", "en-US":
		return English
	default:
		return Chinese
	}
}

func (v Vocabulary) orDefault() Vocabulary {
	if v.Currently == "" {
		v.Currently = Chinese.Currently
	}
	if v.Idle == "" {
		v.Idle = Chinese.Idle
	}
	if v.Finished == "" {
		v.Finished = Chinese.Finished
	}
	if v.InProgress == "" {
		v.InProgress = Chinese.InProgress
	}
	return v
}
