// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package engine

import (
	"reflect"

	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"
)

// NewValueWorker returns a degenerate worker that exposes the supplied
// value when passed into ValueWorkerOutput. Please kill the worker when
// you've finished with the value.
func NewValueWorker(value interface{}) (worker.Worker, error) {
	if value == nil {
		return nil, errors.New("NewValueWorker expects a value")
	}
	w := &valueWorker{value: value}
	w.tomb.Go(func() error {
		<-w.tomb.Dying()
		return nil
	})
	return w, nil
}

// ValueWorkerOutput sets the value wrapped by the supplied valueWorker
// into the out pointer, if type-compatible, or fails.
func ValueWorkerOutput(in worker.Worker, out interface{}) error {
	inWorker, _ := in.(*valueWorker)
	if inWorker == nil {
		return errors.Errorf("in should be a *valueWorker; is %#v", in)
	}
	outV := reflect.ValueOf(out)
	if outV.Kind() != reflect.Ptr {
		return errors.Errorf("out should be a pointer; is %#v", out)
	}
	outValV := outV.Elem()
	outValT := outValV.Type()
	inValV := reflect.ValueOf(inWorker.value)
	inValT := inValV.Type()
	if !inValT.ConvertibleTo(outValT) {
		return errors.Errorf("cannot output into %T", out)
	}
	outValV.Set(inValV.Convert(outValT))
	return nil
}

// valueWorker implements a degenerate worker wrapping a single value.
type valueWorker struct {
	tomb  tomb.Tomb
	value interface{}
}

// Kill is part of the worker.Worker interface.
func (v *valueWorker) Kill() {
	v.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (v *valueWorker) Wait() error {
	return v.tomb.Wait()
}
