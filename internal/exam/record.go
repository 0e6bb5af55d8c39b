package exam

// ImageRef is an image attached to a question or case presentation.
// ID is a single letter assigned in path-sorted order by the image mapper;
// Path is rewritten to the public name during finalization.
type ImageRef struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// QuestionRecord is one structured question as produced by the language
// model service. Only the integration engine mutates it afterward, adding
// Answer and Images.
type QuestionRecord struct {
	ID            string     `json:"id"`
	JoinKey       string     `json:"join_key"`
	ProblemNumber int        `json:"problem_number"`
	Text          string     `json:"text"`
	Choices       []string   `json:"choices"`
	QuestionType  string     `json:"question_type,omitempty"`
	Answer        *Answer    `json:"answer,omitempty"`
	Images        []ImageRef `json:"images"`
}

// CasePresentation is the shared context passage of a consecutive block.
// It never receives an answer, only images.
type CasePresentation struct {
	Text   string     `json:"text"`
	Images []ImageRef `json:"images"`
}

// ConsecutiveBlock is a case presentation followed by sub-questions that
// share its context. JoinKey is the range form (e.g. "C-60-62") and is
// rule-derived from the sub-question numbers, never trusted from the model.
type ConsecutiveBlock struct {
	JoinKey          string           `json:"join_key"`
	SourcePDF        string           `json:"source_pdf,omitempty"`
	CasePresentation CasePresentation `json:"case_presentation"`
	SubQuestions     []QuestionRecord `json:"sub_questions"`
}

// ProblemChunk is one question-sized text excerpt identified by the
// language model partitioning stage.
type ProblemChunk struct {
	ProblemNumber int    `json:"problem_number"`
	Text          string `json:"text"`
}

// ConsecutiveSpan is a contiguous verbatim excerpt covering one detected
// consecutive question block.
type ConsecutiveSpan struct {
	SourcePDF       string `json:"source_pdf"`
	Type            string `json:"type"` // always "consecutive"
	QuestionNumbers []int  `json:"question_numbers"`
	Text            string `json:"text"`
}

// AnswerKeyTable maps canonical join-key strings to the raw answer tokens
// read off the printed answer table.
type AnswerKeyTable map[string][]string
