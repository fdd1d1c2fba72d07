package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	EnrollmentStatusPending  = "pending"
	EnrollmentStatusEnrolled = "enrolled"
)

// CourseEnrollment is a one-off purchase of a recorded or interactive course.
type CourseEnrollment struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AcademyID     uint       `gorm:"not null;index" json:"academy_id"`
	StudentID     uint       `gorm:"not null;index:ux_course_enrollments_student_course,unique,priority:1" json:"student_id"`
	CourseID      uint       `gorm:"not null;index:ux_course_enrollments_student_course,unique,priority:2" json:"course_id"`
	Status        string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentStatus string     `gorm:"type:varchar(20);not null;default:'unpaid'" json:"payment_status"`
	PaymentID     *uint      `json:"payment_id,omitempty"`
	EnrolledAt    *time.Time `gorm:"type:timestamp;default:null" json:"enrolled_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CourseEnrollment) TableName() string {
	return "course_enrollments"
}

func (e *CourseEnrollment) ActivateFromPayment(tx *gorm.DB, payment *Payment) error {
	if e.Status == EnrollmentStatusEnrolled {
		return nil
	}
	now := time.Now()
	if payment.PaidAt != nil {
		now = *payment.PaidAt
	}
	err := tx.Model(e).Updates(map[string]interface{}{
		"status":         EnrollmentStatusEnrolled,
		"payment_status": PaymentStatePaid,
		"payment_id":     payment.ID,
		"enrolled_at":    now,
	}).Error
	if err != nil {
		return fmt.Errorf("activate enrollment %d: %w", e.ID, err)
	}
	return nil
}

func (e *CourseEnrollment) PaymentReturnPath() string {
	return fmt.Sprintf("/courses/%d/learn", e.CourseID)
}
