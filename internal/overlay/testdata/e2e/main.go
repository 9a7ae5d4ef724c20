// Command e2e prints 21 when built plainly and 42 when built with the overlay.
package main

import (
	"context"
	"fmt"
	"net/url"

	"ctxwrap/pkg/wrap"
)

type doubling struct{}

func (*doubling) Before(*wrap.CallerContext) error { return nil }

func (*doubling) After(_ *wrap.CallerContext, r *wrap.Result[int]) error {
	r.Value *= 2
	return nil
}

type tagging[T any] struct{}

func (*tagging[T]) Before(context.Context, *wrap.CallerContext) error { return nil }

func (*tagging[T]) After(_ context.Context, c *wrap.CallerContext, r *wrap.Result[T]) error {
	if r.Err == nil {
		fmt.Println("async", c.FnName())
	}
	return nil
}

type counting[T any] struct{}

var calls int

func (*counting[T]) Before(*wrap.CallerContext) error {
	calls++
	return nil
}

func (*counting[T]) After(*wrap.CallerContext, *wrap.Result[T]) error { return nil }

var parseURL = url.Parse

//ctxwrap:wrap doubling
func answer() int {
	return 21
}

//ctxwrap:async tagging[_]
func greet(ctx context.Context, name string) (string, error) {
	return "hello " + name, ctx.Err()
}

//ctxwrap:wrap counting[_] // counts activations
func parse(url string) (*url.URL, error) {
	return parseURL(url)
}

func main() {
	fmt.Println(answer())
	msg, err := greet(context.Background(), "gopher")
	if err != nil {
		panic(err)
	}
	fmt.Println(msg)
	u, err := parse("https://go.dev/doc")
	if err != nil {
		panic(err)
	}
	fmt.Println(u.Host, calls)
}
