package check

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Validatable is implemented by values that check their own fields.
type Validatable interface {
	Validate() []error
}

// listErrors sorts the messages so that map iteration order never shows in the error text.
func listErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	sort.Strings(msgs)
	return fmt.Sprintf("%d validation errors:\n\t%s", len(errs), strings.Join(msgs, "\n\t"))
}

// Validate walks v through its pointers, slices, maps and exported struct fields and collects
// the errors of every Validatable value it meets. Each error is prefixed by the path of the
// value that reported it.
func Validate(v interface{}) error {
	var merr *multierror.Error
	walk(reflect.ValueOf(v), "root", func(err error) {
		merr = multierror.Append(merr, err)
	})
	if merr == nil {
		return nil
	}
	merr.ErrorFormat = listErrors
	return merr
}

func walk(v reflect.Value, path string, report func(error)) {
	switch v.Kind() {
	case reflect.Invalid:
		return
	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			walk(v.Elem(), path, report)
		}
		return
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walk(v.Index(i), fmt.Sprintf("%s[%d]", path, i), report)
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			walk(iter.Value(), fmt.Sprintf("%s[%v]", path, iter.Key().Interface()), report)
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).IsExported() {
				walk(v.Field(i), path+"."+t.Field(i).Name, report)
			}
		}
	}

	// Copy into an addressable value so pointer receivers are found too.
	addressable := reflect.New(v.Type())
	addressable.Elem().Set(v)
	if validatable, ok := addressable.Interface().(Validatable); ok {
		for _, err := range validatable.Validate() {
			if err != nil {
				report(errors.Wrap(err, path))
			}
		}
	}
}
