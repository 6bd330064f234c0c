package export

import (
	"bytes"
	"html/template"
	"time"
)

var letterTemplate = template.Must(template.New("letter").Parse(letterHTML))

// LetterData holds the data for the printable letter layout.
type LetterData struct {
	LetterNumber string
	Subject      string
	BodyHTML     template.HTML
	IssuedAt     time.Time
	Signatures   []SignatureLine
}

// SignatureLine is one signature block rendered at the foot of the letter.
type SignatureLine struct {
	Label      string
	SignerName string
	SignedAt   *time.Time
}

// RenderLetterHTML renders the printable HTML for a letter.
func RenderLetterHTML(data LetterData) (string, error) {
	var buf bytes.Buffer
	if err := letterTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const letterHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Subject}}</title>
  <style>
    @page { size: A4; }
    body { font-family: 'Times New Roman', serif; font-size: 12pt; line-height: 1.5; color: #000; }
    .number { text-align: center; margin-bottom: 1.5em; }
    .number .no { font-weight: bold; }
    h1, h2, h3 { text-align: center; }
    .signatures { display: flex; justify-content: space-around; margin-top: 4em; }
    .signature { text-align: center; width: 40%; }
    .signature .slot { height: 5em; }
    .signature .name { font-weight: bold; text-decoration: underline; }
    .meta { text-align: right; margin-bottom: 2em; }
  </style>
</head>
<body>
  <div class="number">
    <span class="no">Nomor: {{.LetterNumber}}</span>
  </div>
  <div class="meta">{{.IssuedAt.Format "2 January 2006"}}</div>
  <div class="body">{{.BodyHTML}}</div>
  {{if .Signatures}}
  <div class="signatures">
    {{range .Signatures}}
    <div class="signature">
      <div>{{.Label}}</div>
      <div class="slot"></div>
      <div class="name">{{.SignerName}}</div>
      {{if .SignedAt}}<div>{{.SignedAt.Format "2 Jan 2006 15:04"}}</div>{{end}}
    </div>
    {{end}}
  </div>
  {{end}}
</body>
</html>`
