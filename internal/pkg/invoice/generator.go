// Package invoice renders a PDF receipt for a completed payment and archives
// it to S3 or a local directory.
package invoice

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AcademyPay/app/models"
	"github.com/ManuelReschke/AcademyPay/internal/pkg/payments"
)

type Generator struct {
	db     *gorm.DB
	store  Store
	issuer string
	now    func() time.Time
}

func NewGenerator(db *gorm.DB, store Store, issuer string) *Generator {
	if issuer == "" {
		issuer = "AcademyPay"
	}
	return &Generator{db: db, store: store, issuer: issuer, now: time.Now}
}

// Number is INV-{academy}-{YYYYMM}-{payment}, stable for a payment.
func Number(p *models.Payment, at time.Time) string {
	return fmt.Sprintf("INV-%d-%04d%02d-%06d", p.AcademyID, at.Year(), int(at.Month()), p.ID)
}

func (g *Generator) GenerateInvoiceWithPdf(ctx context.Context, p *models.Payment) (*payments.InvoiceMetadata, error) {
	if p.Status != models.PaymentStatusCompleted {
		return nil, fmt.Errorf("invoice: payment %d is %s", p.ID, p.Status)
	}
	issued := g.now().UTC()
	if p.PaidAt != nil {
		issued = p.PaidAt.UTC()
	}
	number := Number(p, issued)

	academy := ""
	var a models.Academy
	if g.db != nil && g.db.WithContext(ctx).Select("name").First(&a, p.AcademyID).Error == nil {
		academy = a.Name
	}

	pdf, err := renderPDF(g.issuer, invoiceRows(p, number, issued, academy))
	if err != nil {
		return nil, err
	}

	location, err := g.store.Put(ctx, ObjectKey(p.AcademyID, number, issued), pdf, map[string]string{
		"payment-id":     strconv.FormatUint(uint64(p.ID), 10),
		"invoice-number": number,
	})
	if err != nil {
		return nil, err
	}
	return &payments.InvoiceMetadata{Number: number, Location: location, GeneratedAt: g.now().UTC()}, nil
}

func invoiceRows(p *models.Payment, number string, issued time.Time, academy string) []row {
	rows := []row{
		{"Invoice", number},
		{"Issued", issued.Format("2006-01-02 15:04 UTC")},
		{"Academy", academy},
		{"Payment", "#" + strconv.FormatUint(uint64(p.ID), 10)},
		{"Amount", fmt.Sprintf("%s %s", p.Amount.StringFixed(2), p.Currency)},
		{"Gateway", p.Gateway},
	}
	if tx := p.TransactionRef(); tx != "" {
		rows = append(rows, row{"Transaction", tx})
	}
	if p.CardLastFour != "" {
		rows = append(rows, row{"Card", fmt.Sprintf("%s **** %s", p.CardBrand, p.CardLastFour)})
	}
	return rows
}
