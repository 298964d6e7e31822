package fanout

import (
	"context"
	"errors"
	"testing"
)

func svc(text string, metadata map[string]any) Service {
	return ServiceFunc(func(ctx context.Context, query string) (Response, error) {
		return Response{Text: text, Metadata: metadata}, nil
	})
}

func failingSvc(err error) Service {
	return ServiceFunc(func(ctx context.Context, query string) (Response, error) {
		return Response{}, err
	})
}

func TestFanOutEmptyServiceSetReturnsExplicitEmptyResponse(t *testing.T) {
	f := New()
	resp, err := f.FanOut(context.Background(), "q", First)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "" || resp.Metadata == nil {
		t.Fatalf("expected explicit empty response, got %+v", resp)
	}
}

func TestFanOutFirstReturnsFirstRegistered(t *testing.T) {
	f := New()
	f.RegisterService("a", svc("from-a", nil))
	f.RegisterService("b", svc("from-b", nil))

	resp, err := f.FanOut(context.Background(), "q", First)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "from-a" {
		t.Fatalf("expected from-a, got %q", resp.Text)
	}
}

func TestFanOutShortestAndLongest(t *testing.T) {
	f := New()
	f.RegisterService("a", svc("aaaaaaaaaa", nil))
	f.RegisterService("b", svc("b", nil))

	short, err := f.FanOut(context.Background(), "q", Shortest)
	if err != nil {
		t.Fatal(err)
	}
	if short.Text != "b" {
		t.Fatalf("expected shortest b, got %q", short.Text)
	}

	long, err := f.FanOut(context.Background(), "q", Longest)
	if err != nil {
		t.Fatal(err)
	}
	if long.Text != "aaaaaaaaaa" {
		t.Fatalf("expected longest a..., got %q", long.Text)
	}
}

func TestFanOutConfidencePicksHighest(t *testing.T) {
	f := New()
	f.RegisterService("a", svc("a", map[string]any{"confidence": 0.2}))
	f.RegisterService("b", svc("b", map[string]any{"confidence": 0.9}))
	f.RegisterService("c", svc("c", nil)) // missing confidence treated as 0

	resp, err := f.FanOut(context.Background(), "q", Confidence)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "b" {
		t.Fatalf("expected highest-confidence b, got %q", resp.Text)
	}
}

func TestFanOutMergeConcatenatesAndUnionsMetadata(t *testing.T) {
	f := New()
	f.RegisterService("a", svc("first", map[string]any{"x": 1}))
	f.RegisterService("b", svc("second", map[string]any{"y": 2}))

	resp, err := f.FanOut(context.Background(), "q", Merge)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "first\n---\nsecond" {
		t.Fatalf("unexpected merged text: %q", resp.Text)
	}
	if resp.Metadata["x"] != 1 || resp.Metadata["y"] != 2 {
		t.Fatalf("expected union of metadata, got %v", resp.Metadata)
	}
}

func TestFanOutFailingServiceYieldsAbsentEntry(t *testing.T) {
	f := New()
	f.RegisterService("a", failingSvc(errors.New("boom")))
	f.RegisterService("b", svc("survivor", nil))

	resp, err := f.FanOut(context.Background(), "q", First)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "survivor" {
		t.Fatalf("expected the surviving service's response, got %q", resp.Text)
	}
}

func TestFanOutAllFailingReturnsExplicitEmptyResponse(t *testing.T) {
	f := New()
	f.RegisterService("a", failingSvc(errors.New("boom")))
	f.RegisterService("b", failingSvc(errors.New("boom2")))

	resp, err := f.FanOut(context.Background(), "q", Merge)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "" {
		t.Fatalf("expected empty response, got %q", resp.Text)
	}
}

func TestUnregisterServiceRemovesFromBroadcast(t *testing.T) {
	f := New()
	f.RegisterService("a", svc("from-a", nil))
	f.RegisterService("b", svc("from-b", nil))
	f.UnregisterService("a")

	resp, err := f.FanOut(context.Background(), "q", First)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "from-b" {
		t.Fatalf("expected from-b after a unregistered, got %q", resp.Text)
	}
}
