package interp

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/josephlewis42/rsh/core/env"
	"github.com/josephlewis42/rsh/core/parser"
	"github.com/josephlewis42/rsh/core/token"
)

type job struct {
	name string
	cmd  *exec.Cmd
	code int
}

// jobList holds the commands started while composing a pipeline and the
// files that must stay open until they exit.
type jobList struct {
	jobs    []*job
	drains  []<-chan struct{}
	toClose listCloser
}

func (jl *jobList) add(j *job) {
	jl.jobs = append(jl.jobs, j)
}

// drain copies buffered builtin output to w in the background so a stage
// never blocks on a reader that has not started yet.
func (jl *jobList) drain(buf *bytes.Buffer, w io.Writer) {
	done := make(chan struct{})
	jl.drains = append(jl.drains, done)

	go func() {
		defer close(done)
		_, _ = buf.WriteTo(w)
	}()
}

// closeAfter closes c once every channel in pending is closed.
func (jl *jobList) closeAfter(pending []<-chan struct{}, c io.Closer) {
	if len(pending) == 0 {
		c.Close()
		return
	}

	done := make(chan struct{})
	jl.drains = append(jl.drains, done)

	go func() {
		defer close(done)
		for _, p := range pending {
			<-p
		}
		c.Close()
	}()
}

func (jl *jobList) wait(in *Interpreter) {
	for _, j := range jl.jobs {
		in.wait(j)
	}
	for _, d := range jl.drains {
		<-d
	}
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var lastErr error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// pipeline connects the output of the send side to the input of the get
// side. The outermost pipeline waits on every stage left to right.
func (in *Interpreter) pipeline(ctx context.Context, n *parser.CommandNode, stdin io.Reader, stdout io.Writer) Result {
	if len(n.Children) != 2 {
		in.Errorf("syntax error: pipeline needs two stages")
		return result(env.Continued(2))
	}

	r, w, err := os.Pipe()
	if err != nil {
		in.Errorf("pipe: %v", err)
		return result(env.Continued(1))
	}

	owner := in.jobs == nil
	if owner {
		in.jobs = &jobList{}
	}

	before := len(in.jobs.drains)
	in.Execute(ctx, n.Children[0], token.PipelineSendOutput, stdin, w)
	sending := append([]<-chan struct{}{}, in.jobs.drains[before:]...)
	in.jobs.closeAfter(sending, w)

	res := in.Execute(ctx, n.Children[1], token.PipelineGetInput, r, stdout)
	r.Close()
	res.Continue = true

	if !owner {
		return res
	}

	jobs := in.jobs
	in.jobs = nil
	jobs.wait(in)
	if err := jobs.toClose.Close(); err != nil {
		in.Errorf("%v", err)
	}

	if res.job != nil {
		res.Code = res.job.code
		res.job = nil
	}
	in.Env.SetStatus(res.Code)
	return res
}

// redirect runs the command sub-tree with its output sent to the target
// file.
func (in *Interpreter) redirect(ctx context.Context, n *parser.CommandNode, kind token.Kind, stdin io.Reader, stdout io.Writer) Result {
	if len(n.Children) != 2 {
		in.Errorf("syntax error: redirection needs a command and a target")
		return result(env.Continued(2))
	}

	target := n.Children[1]
	if res := in.resolve(ctx, target, kind, stdin, stdout); !res.Continue {
		return res
	}

	names := arguments(target)
	if target.IsLeaf() && target.Token.Kind == token.Word {
		names = []string{target.Token.Text}
	}
	if len(names) != 1 {
		in.Errorf("%s: ambiguous redirect", strings.TrimSpace(target.Token.Text))
		return result(env.Continued(1))
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if n.Token.Kind == token.OutputRedirectAppend {
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	f, err := in.fs().OpenFile(names[0], flag, 0644)
	if err != nil {
		in.Errorf("%v", err)
		return result(env.Continued(1))
	}

	res := in.Execute(ctx, n.Children[0], kind, stdin, f)

	if in.jobs != nil {
		// Commands started for a pipeline may still be writing.
		in.jobs.toClose = append(in.jobs.toClose, f)
	} else if err := f.Close(); err != nil {
		in.Errorf("%v", err)
	}

	return res
}
