package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// NotMentionedAnswer is what the model is instructed to reply when the
// retrieved context does not contain the answer.
const NotMentionedAnswer = "Not mentioned in the policy document."

// answerErrorPrefix starts the answer text of a question whose generation failed
const answerErrorPrefix = "Error answering question: "

// RunRequest is the body of POST /api/v1/hackrx/run
// @Description Document URL and the questions to answer against it
type RunRequest struct {
	Documents string   `json:"documents" example:"https://example.com/policy.pdf"`
	Questions []string `json:"questions" example:"Does it cover knee surgery?"`
}

// Validate checks the request shape. maxQuestions <= 0 disables the limit.
func (r *RunRequest) Validate(maxQuestions int) error {
	if strings.TrimSpace(r.Documents) == "" {
		return fmt.Errorf("%w: documents is required", ErrInvalidInput)
	}
	if len(r.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalidInput)
	}
	if maxQuestions > 0 && len(r.Questions) > maxQuestions {
		return fmt.Errorf("%w: at most %d questions are allowed", ErrInvalidInput, maxQuestions)
	}
	return nil
}

// RunResponse is the success body; Answers[i] answers Questions[i]
// @Description Answers in the same order as the questions
type RunResponse struct {
	Answers []string `json:"answers" example:"Yes, knee surgery is covered, subject to a 2-year waiting period."`

	// RequestID identifies the run's audit record; sent as a header, not in the body
	RequestID string `json:"-"`
}

// AnswerRecord is the outcome of one question
type AnswerRecord struct {
	Question string
	Answer   string
	Err      error
}

// NewFailedAnswer builds the record for a question whose generation failed.
// The error is folded into the answer text so the request still succeeds.
func NewFailedAnswer(question string, err error) AnswerRecord {
	return AnswerRecord{
		Question: question,
		Answer:   answerErrorPrefix + err.Error(),
		Err:      err,
	}
}

// Failed reports whether generation failed for this question
func (a AnswerRecord) Failed() bool {
	return a.Err != nil
}

// IsErrorAnswer reports whether an answer string carries a generation error
func IsErrorAnswer(answer string) bool {
	return strings.HasPrefix(answer, answerErrorPrefix)
}

// RedactURL drops the query, fragment and credentials of a document URL so
// pre-signed tokens never reach logs or the audit store. Local paths are
// returned unchanged.
func RedactURL(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		if i := strings.IndexAny(source, "?#"); i >= 0 {
			return source[:i]
		}
		return source
	}
	if u.Host == "" {
		return source
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
