package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New создает production-логгер. При debug=true включается
// человекочитаемый вывод для локальной разработки.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("error creating new logger: %w", err)
		}
		return l, nil
	}

	l, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("error creating new logger: %w", err)
	}
	return l, nil
}
