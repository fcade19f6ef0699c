package index

import "github.com/japaniel/tokisama/pkg/dictionary"

// Completion is one ranked lookup result.
type Completion struct {
	Search      string            `json:"search"`
	English     string            `json:"english"`
	Weight      uint32            `json:"weight"`
	Source      dictionary.Source `json:"source"`
	Translation string            `json:"translation"`
	Similar     []Similar         `json:"similar"`
}

// Similar is a translation whose compound is close to a Completion's.
type Similar struct {
	English     string            `json:"english"`
	Length      int               `json:"length"`
	Translation string            `json:"translation"`
	Source      dictionary.Source `json:"source"`
	Distance    int               `json:"dist"`
}
