package notify

import (
	"bytes"
	"html/template"
)

var newAppointmentTmpl = template.Must(template.New("new").Parse(`
<h1>New appointment request</h1>
<p>{{.Client}} booked an appointment with you.</p>
<p><strong>Service:</strong> {{.Service}}</p>
<p><strong>When:</strong> {{.When}}</p>
{{with .Notes}}<p><strong>Notes:</strong> {{.}}</p>{{end}}
<p>Open your dashboard to confirm or decline it.</p>
`))

var statusTmpl = template.Must(template.New("status").Parse(`
<h1>Appointment {{.Verb}}</h1>
<p>Your appointment with {{.Professional}} was {{.Verb}}.</p>
<p><strong>Service:</strong> {{.Service}}</p>
<p><strong>When:</strong> {{.When}}</p>
{{if .RateInvite}}<p>Tell us how it went: rate your appointment in the app.</p>{{end}}
`))

type newAppointmentView struct {
	Client  string
	Service string
	When    string
	Notes   string
}

type statusView struct {
	Professional string
	Service      string
	When         string
	Verb         string
	RateInvite   bool
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
