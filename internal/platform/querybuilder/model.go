package querybuilder

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// modelPlan lists the db-tagged exported fields of a struct type in declaration order.
type modelPlan struct {
	columns []string
	fields  []int
}

var plans sync.Map // reflect.Type -> *modelPlan

// InsertModel builds a single-row insert from the `db` tags of model.
func InsertModel(table string, model any, suffix string) (string, []any, error) {
	value, plan, err := planFor(model)
	if err != nil {
		return "", nil, err
	}

	vals := make([]any, 0, len(plan.fields))
	for _, idx := range plan.fields {
		vals = append(vals, value.Field(idx).Interface())
	}
	return InsertInto(table).
		Columns(plan.columns...).
		Values(vals...).
		Suffix(suffix).
		ToSQL()
}

// ColumnsOf returns the db columns of model, suitable for Select.
func ColumnsOf(model any) ([]string, error) {
	_, plan, err := planFor(model)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), plan.columns...), nil
}

func planFor(model any) (reflect.Value, *modelPlan, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return reflect.Value{}, nil, fmt.Errorf("model cannot be nil")
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return reflect.Value{}, nil, fmt.Errorf("model must be struct, got %s", value.Kind())
	}

	typ := value.Type()
	if cached, ok := plans.Load(typ); ok {
		return value, cached.(*modelPlan), nil
	}

	plan := &modelPlan{}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		col, _, _ := strings.Cut(field.Tag.Get("db"), ",")
		col = strings.TrimSpace(col)
		if col == "" || col == "-" {
			continue
		}
		plan.columns = append(plan.columns, col)
		plan.fields = append(plan.fields, i)
	}
	if len(plan.columns) == 0 {
		return reflect.Value{}, nil, fmt.Errorf("model %s has no db columns", typ)
	}

	actual, _ := plans.LoadOrStore(typ, plan)
	return value, actual.(*modelPlan), nil
}
