package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGridNotifier delivers evaluation notices by email through SendGrid
type SendGridNotifier struct {
	key  string
	from *sgmail.Email
}

func NewSendGridNotifier(apiKey, fromName, fromEmail string) *SendGridNotifier {
	return &SendGridNotifier{
		key:  apiKey,
		from: sgmail.NewEmail(fromName, fromEmail),
	}
}

func (n *SendGridNotifier) SendEvaluationNotice(ctx context.Context, notice *EvaluationNotice) error {
	p := sgmail.NewPersonalization()
	p.Subject = fmt.Sprintf("[%s] Evaluation open: %s", notice.CycleName, notice.SubjectName)
	p.AddTos(sgmail.NewEmail(notice.Student.FullName, notice.Student.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", fmt.Sprintf(
		"The evaluation for %s is open until %s. Please submit your answers before the deadline.",
		notice.SubjectName, notice.EndsAt,
	)))

	req := sendgrid.GetRequest(n.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned status %d: %s", res.StatusCode, res.Body)
	}

	return nil
}
