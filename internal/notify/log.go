package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender пишет код подтверждения в лог вместо отправки письма.
// Используется, когда адрес почтового шлюза не задан.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender создаёт отправитель, пишущий коды в указанный логгер.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendOTP логирует код подтверждения для указанного адреса.
func (s *LogSender) SendOTP(ctx context.Context, email, code string) error {
	s.logger.Info("otp issued",
		zap.String("email", email),
		zap.String("code", code),
	)
	return nil
}
