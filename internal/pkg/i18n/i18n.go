// Package i18n holds the user-facing payment messages in Arabic and English.
package i18n

import "strings"

const (
	Arabic  = "ar"
	English = "en"

	DefaultLocale = Arabic
)

// Message keys.
const (
	PaymentSuccess            = "payment.success"
	PaymentAlreadyCompleted   = "payment.already_completed"
	PaymentPending            = "payment.pending"
	PaymentFailed             = "payment.failed"
	PaymentNotFound           = "payment.not_found"
	PaymentVerificationFailed = "payment.verification_failed"
	PaymentInvalidCallback    = "payment.invalid_callback"

	EmailPaymentSubject  = "email.payment_success.subject"
	EmailPaymentGreeting = "email.payment_success.greeting"
	EmailPaymentBody     = "email.payment_success.body"
)

var catalog = map[string]map[string]string{
	Arabic: {
		PaymentSuccess:            "تم الدفع بنجاح وتم تفعيل اشتراكك",
		PaymentAlreadyCompleted:   "تم تأكيد هذه الدفعة مسبقاً",
		PaymentPending:            "الدفعة قيد المعالجة، سنقوم بإشعارك عند تأكيدها",
		PaymentFailed:             "فشلت عملية الدفع، يرجى المحاولة مرة أخرى",
		PaymentNotFound:           "لم يتم العثور على الدفعة",
		PaymentVerificationFailed: "تعذر التحقق من الدفعة لدى بوابة الدفع",
		PaymentInvalidCallback:    "بيانات العودة من بوابة الدفع غير صالحة",
		EmailPaymentSubject:       "تأكيد الدفع",
		EmailPaymentGreeting:      "مرحباً",
		EmailPaymentBody:          "استلمنا دفعتك بنجاح.",
	},
	English: {
		PaymentSuccess:            "Payment successful. Your purchase is now active.",
		PaymentAlreadyCompleted:   "This payment has already been confirmed.",
		PaymentPending:            "Your payment is being processed. We will notify you once it is confirmed.",
		PaymentFailed:             "The payment failed. Please try again.",
		PaymentNotFound:           "Payment not found.",
		PaymentVerificationFailed: "We could not verify the payment with the gateway.",
		PaymentInvalidCallback:    "The gateway returned invalid parameters.",
		EmailPaymentSubject:       "Payment confirmation",
		EmailPaymentGreeting:      "Hello",
		EmailPaymentBody:          "We have received your payment.",
	},
}

// Normalize maps any locale tag ("en-US", "AR") to a supported locale.
func Normalize(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	if _, ok := catalog[l]; ok {
		return l
	}
	return DefaultLocale
}

// T returns the message for key in locale, falling back to the default
// locale and finally to the key itself.
func T(locale, key string) string {
	if msg, ok := catalog[Normalize(locale)][key]; ok {
		return msg
	}
	if msg, ok := catalog[DefaultLocale][key]; ok {
		return msg
	}
	return key
}
