package accounts

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

const (
	subjectConfirm = "Confirm your email address"
	subjectReset   = "Reset your password"
)

var (
	confirmTemplate = template.Must(template.New("confirm").Parse(
		`<p>Thanks for signing up, {{.Username}}. Follow the link below to confirm your email address:</p>
<p><a href="{{.Link}}">Confirm email</a></p>`))
	resetTemplate = template.Must(template.New("reset").Parse(
		`<p>We received a request to reset the password for {{.Username}}. The link below is valid for {{.TTL}}:</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not ask for this you can ignore this message.</p>`))
)

type emailData struct {
	Username string
	Link     string
	TTL      string
}

func joinLink(base string, segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(escaped, "/")
}

// ConfirmationLink points at the API confirm endpoint.
func ConfirmationLink(backendURL, token string) string {
	return joinLink(backendURL, "user", "confirm", token)
}

// ResetLink points at the client reset page.
func ResetLink(frontURL, token string) string {
	return joinLink(frontURL, "reset-password", token)
}

func render(tmpl *template.Template, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("accounts: render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
