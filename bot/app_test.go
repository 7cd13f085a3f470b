package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	coreconfig "dailybread/core/config"
	coretelegram "dailybread/core/telegram"
	"dailybread/plan"
	"dailybread/subscriber"
)

func testApp(t *testing.T) *App {
	t.Helper()
	var content string
	for i := 1; i <= 5; i++ {
		content += fmt.Sprintf("%d,Gen %d,Matt %d\n", i, i, i)
	}
	path := filepath.Join(t.TempDir(), "plan.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	p, err := plan.Load(path)
	if err != nil {
		t.Fatalf("load plan: %v", err)
	}

	cfg := &coreconfig.Config{}
	cfg.Telegram.Token = "test-token"
	cfg.Telegram.AdminID = 99
	cfg.Schedule.SendTime = "07:00"
	if err := coreconfig.Normalize(cfg); err != nil {
		t.Fatalf("normalize config: %v", err)
	}

	return &App{
		cfg:       cfg,
		store:     subscriber.NewMemoryStore(),
		plan:      p,
		startedAt: time.Now(),
	}
}

func TestRegisterCommands(t *testing.T) {
	a := testApp(t)
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)

	for _, name := range []string{"/start", "/subscribe", "/unsubscribe", "/today", "/settime", "/setlang", "/progress", "/reset", "/help", "/chatinfo", "/stats"} {
		if _, _, ok := reg.LookupCommand(name); !ok {
			t.Errorf("command %s not registered", name)
		}
	}

	_, stats, ok := reg.LookupCommand("/stats")
	if !ok || !stats.AdminOnly || !stats.Hidden {
		t.Fatalf("/stats must be admin-only and hidden: %+v", stats)
	}

	if key, _, ok := reg.LookupCommand("/settimer"); !ok || key != "/settime" {
		t.Fatalf("alias /settimer should resolve to /settime, got %q", key)
	}

	for _, c := range reg.ListCommands(true) {
		if c.Text == "stats" || c.Text == "chatinfo" {
			t.Errorf("hidden command %q published to the menu", c.Text)
		}
	}

	if reg.TextFallback() == nil {
		t.Fatal("text fallback not set")
	}
}

func TestBuildRoutesWrapsAliases(t *testing.T) {
	a := testApp(t)
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)

	routes := a.buildRoutes(reg)
	endpoints := make(map[any]bool, len(routes))
	for _, r := range routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []string{"/subscribe", "/settime", "/settimer", "/stats"} {
		if !endpoints[want] {
			t.Errorf("no route for %s", want)
		}
	}
}

func TestRunOptionsCarryMiddlewares(t *testing.T) {
	a := testApp(t)
	a.cfg.RateLimit.IntervalMS = 500

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("TelegramRunOptions: %v", err)
	}
	names := make(map[string]bool)
	for _, mw := range opts.Middlewares {
		names[mw.Name] = true
	}
	for _, want := range []string{"recover", "logging", "rate_limit"} {
		if !names[want] {
			t.Errorf("middleware %s missing", want)
		}
	}
	if opts.OnStart == nil || opts.OnStop == nil {
		t.Fatal("lifecycle hooks must be set")
	}
}
