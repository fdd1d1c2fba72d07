package models

// All returns every model managed by AutoMigrate, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Academy{},
		&AcademyGatewaySetting{},
		&User{},
		&Subscription{},
		&CourseEnrollment{},
		&Payment{},
		&WebhookEvent{},
		&PaymentAuditLog{},
	}
}
