package render

import (
	"bytes"
	"fmt"
	"html/template"
)

// cardTemplate is the shared HTML/CSS composition rendered by the
// wkhtmltoimage and chromium backends. The procedural backend draws the same
// composition directly.
var cardTemplate = template.Must(template.New("card").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  html, body {
    margin: 0;
    width: {{.Width}}px;
    height: {{.Height}}px;
    background: #000;
    font-family: {{.FontFamily}}, sans-serif;
    overflow: hidden;
  }
  .glow-center {
    position: absolute;
    left: 50%; top: 50%;
    width: 1000px; height: 1000px;
    transform: translate(-50%, -50%);
    background: radial-gradient(circle, rgba(0,122,255,0.16) 0%, rgba(0,122,255,0) 70%);
  }
  .glow-side {
    position: absolute;
    left: 70%; top: 60%;
    width: 600px; height: 600px;
    transform: translate(-50%, -50%);
    background: radial-gradient(circle, rgba(88,86,214,0.12) 0%, rgba(88,86,214,0) 70%);
  }
  .card {
    position: absolute;
    left: 90px; top: 90px;
    right: 90px; bottom: 90px;
    background: rgba(20,20,20,0.86);
    border: 1px solid rgba(255,255,255,0.08);
    border-radius: 40px;
    box-shadow: 0 0 40px rgba(0,122,255,0.06), 0 20px 60px rgba(0,0,0,0.8);
    display: flex;
    flex-direction: column;
    align-items: center;
  }
  .brand {
    margin-top: 100px;
    font-size: 95px;
    color: #fff;
    text-shadow: 0 0 30px rgba(0,122,255,0.5), 2px 2px 4px rgba(0,0,0,0.8);
  }
  .badge {
    margin-top: 35px;
    padding: 12px 30px;
    font-size: 26px;
    color: #5ac8fa;
    background: rgba(0,122,255,0.12);
    border: 1px solid rgba(0,122,255,0.25);
    border-radius: 25px;
  }
  .body {
    flex: 1;
    display: flex;
    align-items: center;
    justify-content: center;
    width: 80%;
  }
  .message {
    font-size: 62px;
    line-height: 1.5;
    color: #fff;
    text-align: center;
    text-shadow: 0 0 20px rgba(255,255,255,0.3), 5px 5px 8px rgba(0,0,0,0.8);
  }
  .footer {
    margin-bottom: 60px;
    font-size: 30px;
    color: #8c8c8c;
  }
</style>
</head>
<body>
  <div class="glow-center"></div>
  <div class="glow-side"></div>
  <div class="card">
    <div class="brand">{{.Brand}}</div>
    <div class="badge">{{.Badge}}</div>
    <div class="body"><div class="message" id="message">{{.Text}}</div></div>
    <div class="footer">{{.Footer}}</div>
  </div>
</body>
</html>
`))

type cardTemplateData struct {
	Width      int
	Height     int
	FontFamily string
	Brand      string
	Badge      string
	Text       string
	Footer     string
}

func buildCardHTML(card Card, width, height int, brand, footer string) ([]byte, error) {
	title := card.Title
	if title == "" {
		title = brand
	}
	data := cardTemplateData{
		Width:      width,
		Height:     height,
		FontFamily: "'Komika Axis'",
		Brand:      title,
		Badge:      badgeText(card.MessageID),
		Text:       card.Text,
		Footer:     footer,
	}
	var buf bytes.Buffer
	if err := cardTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute card template: %w", err)
	}
	return buf.Bytes(), nil
}

func badgeText(id int64) string {
	return fmt.Sprintf("sp#%d", id)
}
