// Package render builds the confirmation email body.
package render

import (
	"bytes"
	"fmt"
	"html/template"
)

// NoFactsMessage is shown when no facts are available.
const NoFactsMessage = "We couldn't find any fun facts for this location, but we're excited for your move!"

// Input is everything the confirmation shows. Facts and Images may be empty.
type Input struct {
	Name          string
	CustomerID    int64
	MoveDate      string
	MovingAddress string
	Facts         []string
	Images        []string
}

// The template keeps each fact and image on one line with no whitespace
// between elements, so output is stable for the email log.
var confirmationTmpl = template.Must(template.New("confirmation").Parse(
	`<p>Hello {{.Name}}, your booking #{{.CustomerID}} was created.</p>
<p><strong>Move date:</strong> {{.MoveDate}}</p>
<p><strong>Address:</strong> {{.MovingAddress}}</p>
<h3>Fun Facts About Your New Location</h3>
<p>{{if .Facts}}{{range $i, $f := .Facts}}{{if $i}}<br>{{end}}• {{$f}}{{end}}{{else}}` + NoFactsMessage + `{{end}}</p>
{{- if .Images}}
<h3>What {{.MovingAddress}} Looks Like</h3>
<table role="presentation" cellpadding="0" cellspacing="0" width="100%">
<tr>
<td align="center">{{range .Images}}<img src="{{.}}" width="180" style="border-radius:8px; margin:4px;" alt="{{$.MovingAddress}}" />{{end}}</td>
</tr>
</table>
{{- end}}
`))

// Confirmation renders the HTML body. Every interpolated value is escaped
// for its context, so user input and third-party text cannot inject markup.
func Confirmation(in Input) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("render confirmation: %w", err)
	}
	return buf.String(), nil
}
