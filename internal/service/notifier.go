package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/upscpath/prep-platform/internal/logger"
)

// EmailSender отправляет письмо с кодом подтверждения.
type EmailSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// SMSSender отправляет SMS с кодом подтверждения.
type SMSSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogEmailSender пишет код в лог вместо реальной отправки (development).
type LogEmailSender struct{}

func (LogEmailSender) SendOTP(ctx context.Context, email, code string) error {
	logger.WithComponent("notifier").WithFields(logrus.Fields{
		"channel": "email",
		"to":      email,
		"code":    code,
	}).Info("отправка OTP (dev-заглушка)")
	return nil
}

// LogSMSSender пишет код в лог вместо реальной отправки (development).
type LogSMSSender struct{}

func (LogSMSSender) SendOTP(ctx context.Context, phone, code string) error {
	logger.WithComponent("notifier").WithFields(logrus.Fields{
		"channel": "sms",
		"to":      phone,
		"code":    code,
	}).Info("отправка OTP (dev-заглушка)")
	return nil
}
