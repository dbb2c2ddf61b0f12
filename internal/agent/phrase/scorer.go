// Package phrase runs the external sentence-transformer phrase scorer.
package phrase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	cfg "github.com/feichai0017/sit-pipeline/config"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

var (
	ErrMalformedOutput = errors.New("phrase scorer output is not valid JSON")
	ErrTimeout         = errors.New("phrase scorer timed out")
)

// AccessTokenEnv carries the Exchange access token to the subprocess.
const AccessTokenEnv = "EXO_ACCESS_TOKEN"

type Request struct {
	FilePath          string
	UserPrincipalName string
	AccessToken       string
	Organization      string
	PreserveCase      bool
}

type PhraseScore struct {
	StreamName string
	Phrase     string
	Score      float64
}

// Scorer returns scored phrases for one file.
type Scorer interface {
	ScorePhrases(ctx context.Context, req Request) ([]PhraseScore, error)
}

// CommandScorer runs the PowerShell extraction script as a subprocess and
// parses its JSON report.
type CommandScorer struct {
	logger           logger.Logger
	executable       string
	baseArgs         []string
	pythonScriptPath string
	pythonExecutable string
	timeout          time.Duration
	windows          bool
}

func NewCommandScorer(log logger.Logger, c *cfg.PhraseScorerConfig) *CommandScorer {
	return &CommandScorer{
		logger:           log.Named("phrase"),
		executable:       c.Executable,
		baseArgs:         []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-File", c.ScriptPath},
		pythonScriptPath: c.PythonScriptPath,
		pythonExecutable: c.PythonExecutable,
		timeout:          c.Timeout,
		windows:          runtime.GOOS == "windows",
	}
}

// Args builds the script arguments for a request.
func (s *CommandScorer) Args(req Request) []string {
	args := append([]string(nil), s.baseArgs...)
	args = append(args,
		"-PythonScriptPath", s.pythonScriptPath,
		"-PythonExecutable", s.pythonExecutable,
	)
	if req.UserPrincipalName != "" {
		args = append(args, "-UserPrincipalName", req.UserPrincipalName)
	}
	if req.Organization != "" {
		args = append(args, "-Organization", req.Organization)
	}
	if req.PreserveCase {
		args = append(args, "-PreserveCase")
	}
	if s.windows {
		args = append(args, "-WinFile", req.FilePath)
	} else {
		args = append(args, "-MacFile", req.FilePath)
	}
	return args
}

func (s *CommandScorer) ScorePhrases(ctx context.Context, req Request) ([]PhraseScore, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.executable, s.Args(req)...)
	cmd.Env = os.Environ()
	if req.AccessToken != "" {
		cmd.Env = append(cmd.Env, AccessTokenEnv+"="+req.AccessToken)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// grandchildren may hold the pipes open after the kill
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("phrase scorer failed: %w: %s", err, detail)
	}

	scores, err := ParseOutput(stdout.String())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Phrase scoring finished",
		logger.String("file", req.FilePath),
		logger.Int("phrases", len(scores)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return scores, nil
}
