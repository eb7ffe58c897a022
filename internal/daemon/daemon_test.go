package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/internal/logger"
	"github.com/observerai/companion/pkg/gateway"
	"github.com/observerai/companion/pkg/hotkey"
	"github.com/observerai/companion/pkg/shortcut"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refusingHost struct{}

func (refusingHost) Install(hotkey.Handler) error    { return errors.New("no display") }
func (refusingHost) Register(shortcut.Chord) error   { return nil }
func (refusingHost) Unregister(shortcut.Chord) error { return nil }
func (refusingHost) Close() error                    { return nil }

func testOptions(t *testing.T) *config.Options {
	dir := t.TempDir()
	return &config.Options{
		DataDir:      dir,
		SettingsFile: filepath.Join(dir, config.SettingsFileName),
		Listen:       "127.0.0.1:0",
		Stream:       config.StreamOptions{Backlog: 10},
	}
}

func testLogger(t *testing.T) *logger.Logger {
	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func createTestDaemon(t *testing.T, opts *config.Options, options ...Option) *Daemon {
	d, err := New(opts, testLogger(t), options...)
	require.NoError(t, err)
	return d
}

func primary(rest string) string {
	return config.CurrentPlatform().PrimaryModifier() + "+" + rest
}

func getHealth(t *testing.T, d *Daemon) gateway.HealthStatus {
	resp, err := http.Get("http://" + d.Gateway().Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health gateway.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	return health
}

func TestNew(t *testing.T) {
	d := createTestDaemon(t, testOptions(t))

	assert.NotNil(t, d.Store())
	assert.NotNil(t, d.Bus())
	assert.NotNil(t, d.Registry())
	assert.NotNil(t, d.Window())
	assert.NotNil(t, d.Gateway())
	assert.NotNil(t, d.Metrics())
	assert.NotNil(t, d.eventLoop)
	assert.NotNil(t, d.lifecycle)
	assert.Equal(t, config.DefaultConfig(config.CurrentPlatform()), d.Store().Config())
}

func TestNewRequiresOptionsAndLogger(t *testing.T) {
	_, err := New(nil, testLogger(t))
	assert.Error(t, err)

	_, err = New(testOptions(t), nil)
	assert.Error(t, err)
}

func TestDaemonStartStop(t *testing.T) {
	opts := testOptions(t)
	d := createTestDaemon(t, opts)

	require.NoError(t, d.Start())

	status := d.Status()
	assert.True(t, status.Running)
	assert.NotEqual(t, "127.0.0.1:0", status.Addr)

	pid, err := ReadPIDFile(opts.PIDFile())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	assert.Error(t, d.Start())

	require.NoError(t, d.Stop())
	assert.False(t, d.Status().Running)

	_, err = os.Stat(opts.PIDFile())
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, d.Stop())
}

func TestDaemonStatus(t *testing.T) {
	d := createTestDaemon(t, testOptions(t))

	status := d.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Duration(0), status.Uptime)

	require.NoError(t, d.Start())
	defer d.Stop()

	time.Sleep(20 * time.Millisecond)
	status = d.Status()
	assert.True(t, status.Running)
	assert.Greater(t, status.Uptime, time.Duration(0))
}

func TestDaemonShortcutsDisabled(t *testing.T) {
	d := createTestDaemon(t, testOptions(t))
	require.NoError(t, d.Start())
	defer d.Stop()

	assert.Equal(t, 0, d.Registry().Count())

	health := getHealth(t, d)
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.ShortcutsEnabled)
	assert.Equal(t, 0, health.Shortcuts)
}

func TestDaemonShortcutPipeline(t *testing.T) {
	opts := testOptions(t)

	cfg := config.DefaultConfig(config.CurrentPlatform())
	cfg.Shortcuts.AgentShortcuts = map[string]string{"agentA": primary("1")}
	seed := config.NewStore(opts.SettingsFile, config.CurrentPlatform(), zerolog.Nop())
	require.NoError(t, seed.Save(cfg))

	host := hotkey.NewMemoryHost()
	d := createTestDaemon(t, opts, WithHotkeyHost(host), WithVersion("1.2.3"))
	require.NoError(t, d.Start())
	defer d.Stop()

	assert.Equal(t, 10, d.Registry().Count())
	assert.True(t, d.Registry().Installed())

	sub := d.Bus().Subscribe()
	defer sub.Close()

	t.Run("toggle shows the overlay", func(t *testing.T) {
		require.True(t, host.Press(shortcut.MustParse(primary("B"))))
		assert.True(t, d.Window().State().Visible)
	})

	t.Run("move nudges the overlay", func(t *testing.T) {
		before := d.Window().State().Position
		require.True(t, host.Press(shortcut.MustParse(primary("ArrowRight"))))
		assert.Equal(t, before.X+50, d.Window().State().Position.X)
	})

	t.Run("agent shortcut submits a command", func(t *testing.T) {
		require.True(t, host.Press(shortcut.MustParse(primary("1"))))

		action, ok := d.Bus().Pending("agentA")
		require.True(t, ok)
		assert.Equal(t, "toggle", action)

		msg, err := sub.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, "agentA", msg.AgentID)
	})

	t.Run("release is ignored", func(t *testing.T) {
		visible := d.Window().State().Visible
		require.True(t, host.Release(shortcut.MustParse(primary("B"))))
		assert.Equal(t, visible, d.Window().State().Visible)
	})

	t.Run("shortcuts are audited", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(opts.DataDir, AuditLogFileName))
		require.NoError(t, err)
		assert.Contains(t, string(data), `"action":"agent_toggle"`)
	})

	t.Run("healthz reports registrations", func(t *testing.T) {
		health := getHealth(t, d)
		assert.True(t, health.ShortcutsEnabled)
		assert.Equal(t, 10, health.Shortcuts)
		assert.Equal(t, "1.2.3", health.Version)
		assert.Equal(t, 1, health.Pending)
	})
}

func TestDaemonInstallFailureKeepsRunning(t *testing.T) {
	d := createTestDaemon(t, testOptions(t), WithHotkeyHost(refusingHost{}))
	require.NoError(t, d.Start())
	defer d.Stop()

	assert.True(t, d.Status().Running)
	assert.False(t, d.Registry().Installed())
	assert.Equal(t, 0, d.Registry().Count())

	resp, err := http.Get("http://" + d.Gateway().Addr() + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	opts := testOptions(t)
	require.NoError(t, os.WriteFile(opts.PIDFile(), []byte(strconv.Itoa(os.Getppid())), 0644))

	d := createTestDaemon(t, opts)
	err := d.Start()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.False(t, d.Status().Running)

	pid, err := ReadPIDFile(opts.PIDFile())
	require.NoError(t, err)
	assert.Equal(t, os.Getppid(), pid)
}
