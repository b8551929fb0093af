package dbcmd_test

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
)

// fakeProvider is an in-memory dbx.ConnectionProvider recording every interaction.
// Executed commands only reach committed once their transaction commits.
type fakeProvider struct {
	mu          sync.Mutex
	events      []string
	connections int
	committed   []string
	isolation   []dbx.IsolationLevel

	execFn    func(ctx context.Context, cmd dbx.Command) (dbx.ExecResult, error)
	queryFn   func(ctx context.Context, cmd dbx.Command) (*fakeRows, error)
	commitErr error
	panicOn   string
}

func (p *fakeProvider) record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakeProvider) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakeProvider) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connections
}

func (p *fakeProvider) Committed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.committed...)
}

func (p *fakeProvider) count(event string) int {
	n := 0
	for _, e := range p.Events() {
		if e == event {
			n++
		}
	}
	return n
}

func (p *fakeProvider) NewConnection() (dbx.Connection, error) {
	p.mu.Lock()
	p.connections++
	p.mu.Unlock()

	return &fakeConnection{provider: p}, nil
}

// classifyingProvider adds a dbx.TransientClassifier to a fakeProvider.
type classifyingProvider struct {
	*fakeProvider
	transient func(err error) bool
}

func (p classifyingProvider) IsTransient(err error) bool {
	return p.transient(err)
}

// pacedProvider adds a dbx.BackOffProvider with a constant delay to a classifyingProvider.
type pacedProvider struct {
	classifyingProvider
	delay time.Duration
}

func (p pacedProvider) NewBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(p.delay)
}

type fakeConnection struct {
	provider *fakeProvider
}

func (c *fakeConnection) Open(_ context.Context) error {
	c.provider.record("open")
	return nil
}

func (c *fakeConnection) BeginTx(_ context.Context, level dbx.IsolationLevel) (dbx.Transaction, error) {
	c.provider.record("begin")

	c.provider.mu.Lock()
	c.provider.isolation = append(c.provider.isolation, level)
	c.provider.mu.Unlock()

	return &fakeTransaction{provider: c.provider}, nil
}

func (c *fakeConnection) Close(_ context.Context) error {
	c.provider.record("close")
	return nil
}

type fakeTransaction struct {
	provider *fakeProvider
	pending  []string
}

func (tx *fakeTransaction) Exec(ctx context.Context, cmd dbx.Command) (dbx.ExecResult, error) {
	tx.provider.record("exec:" + cmd.Text())

	if tx.provider.panicOn == cmd.Text() {
		panic("boom")
	}

	res := dbx.ExecResult{RowsAffected: 1}
	if tx.provider.execFn != nil {
		var err error
		if res, err = tx.provider.execFn(ctx, cmd); err != nil {
			return res, err
		}
	}

	tx.pending = append(tx.pending, cmd.Text())

	return res, nil
}

func (tx *fakeTransaction) Query(ctx context.Context, cmd dbx.Command) (dbx.Rows, error) {
	tx.provider.record("query:" + cmd.Text())

	rows := &fakeRows{}
	if tx.provider.queryFn != nil {
		var err error
		if rows, err = tx.provider.queryFn(ctx, cmd); err != nil {
			return nil, err
		}
	}

	rows.provider = tx.provider
	rows.pos = -1

	return rows, nil
}

func (tx *fakeTransaction) Commit(_ context.Context) error {
	tx.provider.record("commit")

	if tx.provider.commitErr != nil {
		return tx.provider.commitErr
	}

	tx.provider.mu.Lock()
	tx.provider.committed = append(tx.provider.committed, tx.pending...)
	tx.provider.mu.Unlock()

	return nil
}

func (tx *fakeTransaction) Rollback(_ context.Context) error {
	tx.provider.record("rollback")
	tx.pending = nil
	return nil
}

// fakeRows is an in-memory dbx.Rows.
type fakeRows struct {
	provider *fakeProvider
	columns  []string
	data     [][]any
	pos      int
}

func newRows(columns []string, data ...[]any) *fakeRows {
	return &fakeRows{columns: columns, data: data}
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() { r.provider.record("rows-close") }

func (r *fakeRows) Columns() []string { return r.columns }

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos], nil }

func (r *fakeRows) Scan(dest ...any) error {
	values := r.data[r.pos]
	if len(dest) != len(values) {
		return fmt.Errorf("expected %d destinations, got %d", len(values), len(dest))
	}

	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}

		v := reflect.ValueOf(values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("cannot scan %T into %s", values[i], target.Type())
		}

		target.Set(v)
	}

	return nil
}
