package mailer

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	mail "github.com/wneessen/go-mail"

	"github.com/senpro-it/nr-chart-refresh-updater/models"
)

// via https://go-mail.dev/getting-started/introduction/

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether enough settings are present to send mail.
func (m *Mailer) Enabled() bool {
	return m != nil && m.Host != "" && m.From != ""
}

// ReportMessage builds the message carrying the run report.
func (m *Mailer) ReportMessage(to []string, report *models.Report) (*mail.Msg, error) {
	oopsBuilder := oops.In("Mailer::ReportMessage")
	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, oopsBuilder.Wrap(err)
	}
	if err := msg.To(to...); err != nil {
		return nil, oopsBuilder.With("to", to).Wrap(err)
	}

	subject := "Chart refresh update report"
	if report.RunID != "" {
		subject += " " + report.RunID
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, reportBody(report))
	return msg, nil
}

func (m *Mailer) SendReport(to []string, report *models.Report) error {
	oopsBuilder := oops.In("Mailer::SendReport").With("host", m.Host)
	msg, err := m.ReportMessage(to, report)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithUsername(m.Username),
		mail.WithPassword(m.Password),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
	}
	if m.Port != 0 {
		opts = append(opts, mail.WithPort(m.Port))
	}
	client, err := mail.NewClient(m.Host, opts...)
	if err != nil {
		return oopsBuilder.Wrap(err)
	}
	defer client.Close()

	if err := client.DialAndSend(msg); err != nil {
		return oopsBuilder.Wrap(err)
	}
	return nil
}

func reportBody(report *models.Report) string {
	var b strings.Builder
	counts := report.Counts()
	fmt.Fprintf(&b, "Dashboards processed: %d\n", report.Len())
	for _, s := range []models.Status{models.StatusOK, models.StatusNotFound, models.StatusInvalid, models.StatusAPIError} {
		fmt.Fprintf(&b, "%s: %d\n", s, counts[s])
	}
	b.WriteString("\n")
	b.WriteString(report.String())
	return b.String()
}
