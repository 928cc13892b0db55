package services

import (
	"strings"

	"golang.org/x/text/language"

	domain "github.com/bloom-bouquet/api/internal/domain"
)

// Supported notification locales. Indonesian is the shop's home market;
// English is the fallback for staff accounts and unknown locales.
var supportedLocales = []language.Tag{
	language.English,
	language.Indonesian,
}

var localeMatcher = language.NewMatcher(supportedLocales)

var statusLabels = map[language.Tag]map[domain.OrderStatus]string{
	language.English: {
		domain.OrderStatusWaitingForPayment: "Waiting for Payment",
		domain.OrderStatusProcessing:        "Being Prepared",
		domain.OrderStatusShipping:          "Out for Delivery",
		domain.OrderStatusDelivered:         "Delivered",
		domain.OrderStatusCancelled:         "Cancelled",
	},
	language.Indonesian: {
		domain.OrderStatusWaitingForPayment: "Menunggu Pembayaran",
		domain.OrderStatusProcessing:        "Sedang Diproses",
		domain.OrderStatusShipping:          "Sedang Dikirim",
		domain.OrderStatusDelivered:         "Telah Diterima",
		domain.OrderStatusCancelled:         "Dibatalkan",
	},
}

var paymentLabels = map[language.Tag]map[domain.PaymentStatus]string{
	language.English: {
		domain.PaymentStatusPending:  "Pending",
		domain.PaymentStatusPaid:     "Paid",
		domain.PaymentStatusFailed:   "Failed",
		domain.PaymentStatusExpired:  "Expired",
		domain.PaymentStatusRefunded: "Refunded",
	},
	language.Indonesian: {
		domain.PaymentStatusPending:  "Menunggu",
		domain.PaymentStatusPaid:     "Lunas",
		domain.PaymentStatusFailed:   "Gagal",
		domain.PaymentStatusExpired:  "Kedaluwarsa",
		domain.PaymentStatusRefunded: "Dikembalikan",
	},
}

// matchLocale maps a free-form locale string onto a supported catalog tag.
func matchLocale(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return language.English
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, index, _ := localeMatcher.Match(tag)
	return supportedLocales[index]
}

// StatusLabel returns the human-readable status label for the given locale.
func StatusLabel(locale string, status domain.OrderStatus) string {
	tag := matchLocale(locale)
	if label, ok := statusLabels[tag][status]; ok {
		return label
	}
	return string(status)
}

// PaymentStatusLabel returns the human-readable payment label for the locale.
func PaymentStatusLabel(locale string, status domain.PaymentStatus) string {
	tag := matchLocale(locale)
	if label, ok := paymentLabels[tag][status]; ok {
		return label
	}
	return string(status)
}
