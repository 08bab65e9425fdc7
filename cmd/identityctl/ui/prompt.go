package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
)

// PromptPassword asks for a password twice without echoing it
func PromptPassword(minLength int) (string, error) {
	var password, confirm string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(func(s string) error {
					if len(s) < minLength {
						return fmt.Errorf("password must be at least %d characters", minLength)
					}
					return nil
				}),

			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&confirm).
				Validate(func(s string) error {
					if s != password {
						return fmt.Errorf("passwords do not match")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeCatppuccin())

	if err := form.Run(); err != nil {
		return "", err
	}
	return password, nil
}

// Field is one labelled line of output
type Field struct {
	Label string
	Value string
}

// PrintFields prints a titled block of labelled values
func PrintFields(title string, fields []Field) {
	fmt.Println(titleStyle.Render(title))
	for _, f := range fields {
		fmt.Printf("  %s %s\n", labelStyle.Render(f.Label), f.Value)
	}
	fmt.Println()
}

// FormatTime renders t with its distance from now
func FormatTime(t time.Time) string {
	d := time.Until(t).Round(time.Second)
	if d < 0 {
		return fmt.Sprintf("%s (%s ago)", t.Format(time.RFC3339), -d)
	}
	return fmt.Sprintf("%s (in %s)", t.Format(time.RFC3339), d)
}

// PrintSuccess prints a success message.
func PrintSuccess(msg string) {
	fmt.Println(successStyle.Render(msg))
}

// PrintError prints an error message.
func PrintError(msg string) {
	fmt.Println(errorStyle.Render("Error: " + msg))
}
