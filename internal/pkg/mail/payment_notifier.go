package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/i18n"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/payments"
)

var paymentTemplate = template.Must(template.New("payment").Parse(`<!DOCTYPE html>
<html lang="{{.Locale}}" dir="{{.Dir}}">
<body>
<p>{{.Greeting}} {{.Name}},</p>
<p>{{.Body}}</p>
<table>
<tr><td>#</td><td>{{.PaymentID}}</td></tr>
<tr><td>{{.AmountLabel}}</td><td>{{.Amount}} {{.Currency}}</td></tr>
{{- if .CardLastFour}}
<tr><td>{{.CardBrand}}</td><td>**** {{.CardLastFour}}</td></tr>
{{- end}}
{{- if .TransactionID}}
<tr><td>Ref</td><td>{{.TransactionID}}</td></tr>
{{- end}}
</table>
</body>
</html>`))

type paymentView struct {
	Locale        string
	Dir           string
	Greeting      string
	Name          string
	Body          string
	AmountLabel   string
	PaymentID     uint
	Amount        string
	Currency      string
	CardBrand     string
	CardLastFour  string
	TransactionID string
}

// PaymentNotifier emails the payer once a payment completes.
type PaymentNotifier struct {
	mailer *SMTPMailer
}

func NewPaymentNotifier(mailer *SMTPMailer) *PaymentNotifier {
	return &PaymentNotifier{mailer: mailer}
}

func (n *PaymentNotifier) SendPaymentSuccessNotification(ctx context.Context, user *models.User, s payments.PaymentSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil || user.Email == "" {
		return fmt.Errorf("mail: payment %d has no recipient", s.PaymentID)
	}

	locale := i18n.Normalize(s.Locale)
	view := paymentView{
		Locale:        locale,
		Dir:           "ltr",
		Greeting:      i18n.T(locale, i18n.EmailPaymentGreeting),
		Name:          user.Name,
		Body:          i18n.T(locale, i18n.EmailPaymentBody),
		AmountLabel:   "Amount",
		PaymentID:     s.PaymentID,
		Amount:        s.Amount.StringFixed(2),
		Currency:      s.Currency,
		CardBrand:     s.CardBrand,
		CardLastFour:  s.CardLastFour,
		TransactionID: s.TransactionID,
	}
	if locale == i18n.Arabic {
		view.Dir = "rtl"
		view.AmountLabel = "المبلغ"
	}

	var body bytes.Buffer
	if err := paymentTemplate.Execute(&body, view); err != nil {
		return fmt.Errorf("mail: render payment %d: %w", s.PaymentID, err)
	}
	return n.mailer.SendMail(user.Email, i18n.T(locale, i18n.EmailPaymentSubject), body.String())
}
