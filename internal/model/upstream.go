package model

// Structure is a test or case as delivered by a question based module.
type Structure struct {
	ID     ID       `json:"id"`
	Title  string   `json:"title"`
	Groups []*Group `json:"groups"`
}

type Group struct {
	Name      string      `json:"name"`
	Questions []*Question `json:"questions"`
}

// Question carries its answerable parts in Subquestions. Campus questions have none and are
// answered directly, so they carry Type, Possibilities and ListID themselves.
type Question struct {
	ID            ID             `json:"id"`
	Type          string         `json:"type,omitempty"`
	Title         string         `json:"title"`
	Text          string         `json:"text,omitempty"`
	Labels        []string       `json:"labels,omitempty"`
	Images        []*ImageRef    `json:"images,omitempty"`
	Subquestions  []*Subquestion `json:"subquestions,omitempty"`
	Possibilities []Possibility  `json:"possibilities,omitempty"`
	ListID        ID             `json:"list_id,omitempty"`
}

func (q *Question) HasOverlayImages() bool {
	for _, img := range q.Images {
		if img != nil && img.Overlay != nil {
			return true
		}
	}
	return false
}

type Subquestion struct {
	ID            ID            `json:"id"`
	Type          string        `json:"type"`
	Title         string        `json:"title"`
	Labels        []string      `json:"labels,omitempty"`
	Possibilities []Possibility `json:"possibilities,omitempty"`
	ListID        ID            `json:"list_id,omitempty"`
	ImageID       ID            `json:"image_id,omitempty"`
}

type Possibility struct {
	ID        ID     `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type ListItem struct {
	ID   ID     `json:"id"`
	Text string `json:"text"`
}

// ImageRef is how a question points at an image volume. Dimensions and offset are only
// present when the module inlines the volume metadata.
type ImageRef struct {
	ID          ID        `json:"id"`
	Type        string    `json:"type,omitempty"`
	Title       string    `json:"title,omitempty"`
	Orientation string    `json:"orientation,omitempty"`
	Window      *Window   `json:"window,omitempty"`
	Overlay     *ImageRef `json:"overlay,omitempty"`
	Dimensions  *Vector   `json:"dimensions,omitempty"`
	Offset      *Vector   `json:"offset,omitempty"`
}

// AnswerRecord holds every answer given to one subquestion. Only the list matching the
// subquestion type is populated.
type AnswerRecord struct {
	ChosenPossibilities []ChoiceAnswer `json:"chosen_possibilities,omitempty"`
	Marker              []Mark         `json:"marker,omitempty"`
	Answers             []TextAnswer   `json:"answers,omitempty"`
}

type ChoiceAnswer struct {
	UserID            ID       `json:"user_id"`
	Answer            Indices  `json:"answer"`
	AdditionalAnswers []string `json:"additional_answers,omitempty"`
}

type Mark struct {
	UserID ID      `json:"user_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
}

func (m Mark) Hits(sentinel float64) bool {
	return m.X == sentinel || m.Y == sentinel || m.Z == sentinel
}

type TextAnswer struct {
	UserID ID     `json:"user_id"`
	Answer string `json:"answer"`
}

// Answers maps subquestion ids to their answer records.
type Answers map[ID]*AnswerRecord
