package formatter

import (
	"os"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Format(records []model.EventRecord) error {
	data, err := sonic.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = os.Stdout.Write(data)
	return err
}
