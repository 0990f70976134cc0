package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"smartgate_go/internal/config"
)

// startSimSidecar launches the device simulator when SIM_AUTOSTART is set
// and points cfg at it. An already running simulator is reused.
func startSimSidecar(cfg *config.Config) (func(), error) {
	if !cfg.SimAutostart {
		return func() {}, nil
	}
	if err := cfg.UseSimulator(); err != nil {
		return nil, err
	}

	healthURL := "http://" + cfg.SimHTTPAddr + "/health"
	if pingSim(healthURL, 900*time.Millisecond) == nil {
		return func() {}, nil
	}

	logDir := filepath.Dir(cfg.LogFile)
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	logPath := filepath.Join(logDir, "smartgate-sim.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	cmd, err := buildSimCommand(cfg)
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, err
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	if err := waitForSim(healthURL, waitCh, 20*time.Second); err != nil {
		terminateProcessGroup(cmd, waitCh)
		_ = logFile.Close()
		return nil, fmt.Errorf("simulator start failed: %w (see %s)", err, logPath)
	}

	cleanup := func() {
		terminateProcessGroup(cmd, waitCh)
		_ = logFile.Close()
	}
	return cleanup, nil
}

func buildSimCommand(cfg *config.Config) (*exec.Cmd, error) {
	args := []string{"-http", cfg.SimHTTPAddr, "-push", cfg.SimPushAddr}
	if raw := strings.TrimSpace(os.Getenv("SIM_AUTOSTART_CMD")); raw != "" {
		return exec.Command("sh", "-lc", raw), nil
	}

	if info, err := os.Stat("./smartgate-sim"); err == nil && info.Mode().Perm()&0o111 != 0 {
		return exec.Command("./smartgate-sim", args...), nil
	}

	if _, err := os.Stat("./cmd/smartgate-sim"); err == nil {
		if _, lookErr := exec.LookPath("go"); lookErr != nil {
			return nil, fmt.Errorf("SIM_AUTOSTART=1 but go binary not found in PATH")
		}
		return exec.Command("go", append([]string{"run", "./cmd/smartgate-sim"}, args...)...), nil
	}

	return nil, errors.New(
		"SIM_AUTOSTART=1 but simulator entrypoint not found. Expected ./cmd/smartgate-sim or ./smartgate-sim binary; set SIM_AUTOSTART_CMD or SIM_AUTOSTART=0",
	)
}

func waitForSim(healthURL string, waitCh <-chan error, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for simulator health")
		}

		select {
		case err := <-waitCh:
			if err == nil {
				return fmt.Errorf("simulator exited before it became ready")
			}
			return fmt.Errorf("simulator exited early: %w", err)
		default:
		}

		if err := pingSim(healthURL, 800*time.Millisecond); err == nil {
			return nil
		}

		time.Sleep(220 * time.Millisecond)
	}
}

func pingSim(healthURL string, timeout time.Duration) error {
	client := http.Client{Timeout: timeout}
	resp, err := client.Get(healthURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	if !body.OK {
		return fmt.Errorf("simulator health not ok")
	}
	return nil
}

func terminateProcessGroup(cmd *exec.Cmd, waitCh <-chan error) {
	if cmd == nil || cmd.Process == nil {
		return
	}

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGTERM)
	}

	select {
	case <-waitCh:
	case <-time.After(2 * time.Second):
		if err == nil {
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			_ = cmd.Process.Kill()
		}
		<-waitCh
	}
}
