package incident

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
)

type FindingsJSON []safety.Finding

func (f FindingsJSON) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

func (f *FindingsJSON) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("expected []byte, got %T", value)
	}
	return json.Unmarshal(bytes, f)
}
