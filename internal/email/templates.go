package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// layoutData fills the shared HTML layout
type layoutData struct {
	Header      string
	Heading     string
	Greeting    string
	Intro       string
	ActionLabel string
	Link        string
	Disclaimer  string
	ExpiryNote  string
}

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #0F766E; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
        .button { display: inline-block; background-color: #0F766E; color: white !important; padding: 12px 30px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #666; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Header}}</h1>
    </div>
    <div class="content">
        <h2>{{.Heading}}</h2>
        {{if .Greeting}}<p>{{.Greeting}}</p>{{end}}
        <p>{{.Intro}}</p>

        <a href="{{.Link}}" class="button" style="color: white !important;">{{.ActionLabel}}</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #0F766E;">{{.Link}}</p>

        <p style="margin-top: 30px;">{{.Disclaimer}}</p>
    </div>
    <div class="footer">
        {{if .ExpiryNote}}<p>{{.ExpiryNote}}</p>{{end}}
        <p>&copy; PropertyHub. All rights reserved.</p>
    </div>
</body>
</html>
`))

func render(data layoutData) (string, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// plainText is the text/plain alternative part
func plainText(data layoutData) string {
	text := data.Heading + "\n\n"
	if data.Greeting != "" {
		text += data.Greeting + "\n\n"
	}
	text += data.Intro + "\n\n" + data.Link + "\n\n" + data.Disclaimer + "\n"
	if data.ExpiryNote != "" {
		text += "\n" + data.ExpiryNote + "\n"
	}
	return text
}
