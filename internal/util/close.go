package util

import (
	"io"
	"log"
	"reflect"
)

// CloseWithErr closes a resource on the deferred path and logs failures
// instead of returning them. Nil closers and typed-nil pointers are ignored
// so callers can defer unconditionally.
func CloseWithErr(closer io.Closer, name string) {
	if closer == nil {
		return
	}
	if val := reflect.ValueOf(closer); val.Kind() == reflect.Ptr && val.IsNil() {
		return
	}
	err := closer.Close()
	if err == nil {
		return
	}
	if name == "" {
		log.Printf("close failed: %v", err)
		return
	}
	log.Printf("close %s failed: %v", name, err)
}
