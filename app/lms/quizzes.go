package lms

import (
	"context"
	"fmt"
	"net/http"

	log "github.com/go-pkgz/lgr"
)

// QuizParams describes a quiz to create. The quiz is created unpublished and
// published explicitly once all questions are in.
type QuizParams struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	QuizType       string `json:"quiz_type,omitempty"` // "assignment" by default
	TimeLimit      int    `json:"time_limit,omitempty"`
	ShuffleAnswers bool   `json:"shuffle_answers,omitempty"`
	Published      bool   `json:"published"`
}

// Quiz is a created LMS quiz.
type Quiz struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"html_url"`
}

// CreateQuiz makes a new unpublished quiz in the course.
func (c *Client) CreateQuiz(ctx context.Context, courseID int64, params QuizParams) (Quiz, error) {
	if params.QuizType == "" {
		params.QuizType = "assignment"
	}
	url := fmt.Sprintf("%s/courses/%d/quizzes", c.BaseURL, courseID)
	body := struct {
		Quiz QuizParams `json:"quiz"`
	}{Quiz: params}

	var res Quiz
	if _, err := c.do(ctx, http.MethodPost, url, body, &res); err != nil {
		return Quiz{}, fmt.Errorf("can't create quiz %q: %w", params.Title, err)
	}
	log.Printf("[DEBUG] created quiz %d %q", res.ID, res.Title)
	return res, nil
}

// QuestionParams is a numerical question with an exact answer and grading margin.
type QuestionParams struct {
	Name      string
	Text      string
	Answer    float64
	Tolerance float64
	Points    float64
}

// CreateQuestion adds a numerical question to the quiz.
func (c *Client) CreateQuestion(ctx context.Context, courseID, quizID int64, params QuestionParams) error {
	url := fmt.Sprintf("%s/courses/%d/quizzes/%d/questions", c.BaseURL, courseID, quizID)

	type answer struct {
		NumericalAnswerType string  `json:"numerical_answer_type"`
		Exact               float64 `json:"answer_exact"`
		Margin              float64 `json:"answer_error_margin"`
		Weight              int     `json:"answer_weight"`
	}
	body := struct {
		Question struct {
			Name     string   `json:"question_name"`
			Text     string   `json:"question_text"`
			Type     string   `json:"question_type"`
			Points   float64  `json:"points_possible"`
			Answers  []answer `json:"answers"`
			Position int      `json:"position,omitempty"`
		} `json:"question"`
	}{}
	body.Question.Name = params.Name
	body.Question.Text = params.Text
	body.Question.Type = "numerical_question"
	body.Question.Points = params.Points
	body.Question.Answers = []answer{{NumericalAnswerType: "exact_answer", Exact: params.Answer,
		Margin: params.Tolerance, Weight: 100}}

	if _, err := c.do(ctx, http.MethodPost, url, body, nil); err != nil {
		return fmt.Errorf("can't create question %q in quiz %d: %w", params.Name, quizID, err)
	}
	return nil
}

// PublishQuiz flips the quiz to published state.
func (c *Client) PublishQuiz(ctx context.Context, courseID, quizID int64) error {
	url := fmt.Sprintf("%s/courses/%d/quizzes/%d", c.BaseURL, courseID, quizID)
	body := struct {
		Quiz struct {
			Published bool `json:"published"`
		} `json:"quiz"`
	}{}
	body.Quiz.Published = true

	if _, err := c.do(ctx, http.MethodPut, url, body, nil); err != nil {
		return fmt.Errorf("can't publish quiz %d: %w", quizID, err)
	}
	log.Printf("[DEBUG] published quiz %d", quizID)
	return nil
}
