package template

import "time"

// Template represents an email template authored by the admin surface
type Template struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Subject     string    `json:"subject" db:"subject"`
	HTMLBody    string    `json:"html_body" db:"html_body"`
	TextBody    string    `json:"text_body" db:"text_body"`
	Variables   []string  `json:"variables,omitempty" db:"variables"`
	Category    string    `json:"category" db:"category"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Rendered is the output of rendering a template against a variable map
type Rendered struct {
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}
