package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tryon/tryon/internal/app"
	"github.com/tryon/tryon/internal/config"
	"github.com/tryon/tryon/internal/quota"
	"github.com/tryon/tryon/internal/testutil"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := &config.Config{
		AppEnv:                 "test",
		LoginTokenTTL:          15 * time.Minute,
		RateLimitEditPerMinute: 30,
		UsageEmbedCap:          1000,
		UsageGlobalCap:         2000,
		UsageQueueSize:         64,
		MemorySweepInterval:    time.Minute,
	}
	a := app.New(context.Background(), cfg, testutil.DiscardLogger())
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

// run executes one tryonctl invocation against a and decodes its output.
func run(t *testing.T, a *app.App, stdin string, out any, args ...string) error {
	t.Helper()
	cmd, _ := newRootCommand(a)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(buf.Bytes(), out); err != nil {
			t.Fatalf("decode output of %v: %v\n%s", args, err, buf.String())
		}
	}
	return nil
}

func TestClientAndEmbedCommands(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	var client struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	if err := run(t, a, "", &client, "client", "create", "c1", "--name", "Acme", "--email", "ops@acme.test"); err != nil {
		t.Fatalf("client create: %v", err)
	}
	if client.ID != "c1" || !strings.HasPrefix(client.Token, "tk_test_") {
		t.Errorf("created client = %+v", client)
	}

	var found struct {
		ID string `json:"id"`
	}
	if err := run(t, a, "", &found, "client", "get", "--by", "email", "OPS@acme.test"); err != nil || found.ID != "c1" {
		t.Errorf("client get by email = %+v, %v", found, err)
	}
	if err := run(t, a, "", nil, "client", "get", "--by", "phone", "x"); err == nil {
		t.Error("unknown lookup should fail")
	}

	doc := `{"id":"e1","clientId":"c1","vertical":"barber","theme":"dark"}`
	if err := run(t, a, doc, nil, "embed", "set", "-"); err != nil {
		t.Fatalf("embed set: %v", err)
	}

	var embeds []struct {
		ID string `json:"id"`
	}
	if err := run(t, a, "", &embeds, "embed", "list", "--client", "c1"); err != nil || len(embeds) != 1 || embeds[0].ID != "e1" {
		t.Errorf("embed list = %+v, %v", embeds, err)
	}

	var del map[string]bool
	if err := run(t, a, "", &del, "embed", "delete", "e1"); err != nil || !del["deleted"] {
		t.Errorf("embed delete = %v, %v", del, err)
	}
	if err := run(t, a, "", nil, "embed", "get", "e1"); err == nil {
		t.Error("deleted embed should not be found")
	}
}

func TestPlanQuotaAndEditCommands(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	_ = run(t, a, "", nil, "client", "create", "c1", "--email", "ops@acme.test")
	_ = run(t, a, `{"id":"e1","clientId":"c1","vertical":"barber"}`, nil, "embed", "set", "-")

	if err := run(t, a, "", nil, "plan", "set", "c1", "platinum"); err == nil {
		t.Error("unknown plan should be rejected")
	}
	if err := run(t, a, "", nil, "plan", "set", "c1", "starter"); err != nil {
		t.Fatalf("plan set: %v", err)
	}

	var bonus map[string]int64
	if err := run(t, a, "", &bonus, "quota", "bonus", "c1", "5"); err != nil || bonus["bonus"] != 5 {
		t.Errorf("quota bonus = %v, %v", bonus, err)
	}
	if err := run(t, a, "", nil, "quota", "bonus", "c1", "0"); !errors.Is(err, quota.ErrInvalidAmount) {
		t.Errorf("quota bonus 0 error = %v, want ErrInvalidAmount", err)
	}

	var admit struct {
		Allowed bool `json:"allowed"`
	}
	if err := run(t, a, "", &admit, "edit", "admit", "e1", "--ip", "203.0.113.9"); err != nil || !admit.Allowed {
		t.Fatalf("edit admit = %+v, %v", admit, err)
	}
	var used map[string]int64
	if err := run(t, a, "", &used, "edit", "complete", "e1"); err != nil || used["used"] != 1 {
		t.Errorf("edit complete = %v, %v", used, err)
	}

	var q struct {
		Used      int64 `json:"used"`
		Limit     int64 `json:"limit"`
		Remaining int64 `json:"remaining"`
	}
	if err := run(t, a, "", &q, "quota", "show", "c1"); err != nil {
		t.Fatalf("quota show: %v", err)
	}
	if q.Used != 1 || q.Limit != 105 || q.Remaining != 104 {
		t.Errorf("quota show = %+v, want used 1 of 105", q)
	}

	var daily struct {
		Count int64 `json:"count"`
	}
	if err := run(t, a, "", &daily, "usage", "daily", "e1"); err != nil || daily.Count != 1 {
		t.Errorf("usage daily = %+v, %v", daily, err)
	}
}

func TestLoginCommands(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	if err := run(t, a, "", nil, "login", "issue", "ghost"); err == nil {
		t.Error("issuing for an unknown client should fail")
	}

	_ = run(t, a, "", nil, "client", "create", "c1", "--email", "ops@acme.test")
	var issued map[string]string
	if err := run(t, a, "", &issued, "login", "issue", "c1"); err != nil || issued["token"] == "" {
		t.Fatalf("login issue = %v, %v", issued, err)
	}

	var consumed map[string]string
	if err := run(t, a, "", &consumed, "login", "consume", issued["token"]); err != nil || consumed["clientId"] != "c1" {
		t.Errorf("login consume = %v, %v", consumed, err)
	}
	if err := run(t, a, "", nil, "login", "consume", issued["token"]); err == nil {
		t.Error("second consume should fail")
	}
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	var status struct {
		Store    string          `json:"store"`
		Backends []backendStatus `json:"backends"`
	}
	if err := run(t, a, "", &status, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Store != "chain(memory)" || len(status.Backends) != 1 || !status.Backends[0].OK {
		t.Errorf("status = %+v", status)
	}
}
