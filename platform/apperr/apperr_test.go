package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestWrapKindMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindInternal, "failed to record call", cause).WithOp("calllog.RecordCall")

	if err.Kind != KindInternal {
		t.Fatalf("kind = %v", err.Kind)
	}
	if err.Error() != "calllog.RecordCall: failed to record call" {
		t.Fatalf("message = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause must survive errors.Is")
	}
	if !Is(err, KindInternal) {
		t.Fatal("Is must classify the wrapped error")
	}
}

func TestWrapUnavailableMapsToBadGateway(t *testing.T) {
	err := Wrap(KindUnavailable, "failed to archive transcript", errors.New("timeout"))
	if err.HTTPStatus() != http.StatusBadGateway {
		t.Fatalf("status = %d", err.HTTPStatus())
	}
}

func TestGetKindOnForeignError(t *testing.T) {
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("non-domain errors must report KindUnknown")
	}
}
