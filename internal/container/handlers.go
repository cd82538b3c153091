package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/exec"
	"github.com/joss/mcpd/internal/ident"
	"github.com/joss/mcpd/internal/render"
	"github.com/joss/mcpd/internal/tool"
)

// buildTailLines bounds how much build output a result carries.
const buildTailLines = 30

// Toolset is the container-mcp tool table.
type Toolset struct {
	engine *Engine
}

// New creates the toolset around engine.
func New(engine *Engine) *Toolset {
	return &Toolset{engine: engine}
}

// Specs implements dispatch.Toolset.
func (t *Toolset) Specs() []tool.Spec { return Specs() }

// Close implements dispatch.Toolset. The engine holds no connection.
func (t *Toolset) Close(context.Context) error { return nil }

// Handlers implements dispatch.Toolset.
func (t *Toolset) Handlers() dispatch.Table {
	return dispatch.Table{
		"list_containers":   t.listContainers,
		"list_images":       t.listImages,
		"pull_image":        t.pullImage,
		"build_image":       t.buildImage,
		"run_container":     t.runContainer,
		"start_container":   t.lifecycle("start", "Started"),
		"stop_container":    t.stopContainer,
		"restart_container": t.lifecycle("restart", "Restarted"),
		"remove_container":  t.removeContainer,
		"container_logs":    t.containerLogs,
		"inspect_container": t.inspectContainer,
		"exec_in_container": t.execInContainer,
		"container_stats":   t.containerStats,
		"remove_image":      t.removeImage,
		"list_networks":     t.listNetworks,
		"list_volumes":      t.listVolumes,
		"engine_info":       t.engineInfo,
	}
}

func containerArg(args tool.Args) (string, error) {
	name := args.String("container")
	if err := ident.ContainerName.Check(name); err != nil {
		return "", err
	}
	return name, nil
}

func (t *Toolset) listContainers(ctx context.Context, args tool.Args) (*tool.Result, error) {
	cmd := []string{"ps"}
	if args.Bool("all") {
		cmd = append(cmd, "-a")
	}
	if f := args.String("filter"); f != "" {
		cmd = append(cmd, "--filter", f)
	}
	cmd = append(cmd, "--format", psFormat)

	out, err := t.engine.Output(ctx, cmd...)
	if err != nil {
		return nil, err
	}

	rows := parseRows(out, 5)
	b := render.NewBuilder()
	if len(rows) == 0 {
		b.Empty("No containers found")
		return b.Result(), nil
	}
	b.Header("Containers (%d)", len(rows))
	b.Table([]string{"id", "name", "image", "status", "ports"}, rows)
	return b.Result(), nil
}

func (t *Toolset) listImages(ctx context.Context, args tool.Args) (*tool.Result, error) {
	cmd := []string{"images"}
	if args.Bool("all") {
		cmd = append(cmd, "-a")
	}
	cmd = append(cmd, "--format", imagesFormat)

	out, err := t.engine.Output(ctx, cmd...)
	if err != nil {
		return nil, err
	}

	rows := parseRows(out, 5)
	b := render.NewBuilder()
	if len(rows) == 0 {
		b.Empty("No images found")
		return b.Result(), nil
	}
	b.Header("Images (%d)", len(rows))
	b.Table([]string{"repository", "tag", "id", "size", "created"}, rows)
	return b.Result(), nil
}

func (t *Toolset) pullImage(ctx context.Context, args tool.Args) (*tool.Result, error) {
	ref := args.String("image")
	if tag := args.String("tag"); tag != "" {
		ref += ":" + tag
	}
	if err := ident.ImageRef.Check(ref); err != nil {
		return nil, err
	}

	out, err := t.engine.Output(ctx, "pull", ref)
	if err != nil {
		return nil, err
	}

	b := render.NewBuilder()
	b.Println("Pulled %s", ref)
	if out != "" {
		b.Line()
		b.Block(tailLines(out, 5))
	}
	return b.Result(), nil
}

func (t *Toolset) buildImage(ctx context.Context, args tool.Args) (*tool.Result, error) {
	dir := args.String("context")
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build context %s is not a directory", dir)
	}

	cmd := []string{"build"}
	tag := args.String("tag")
	if tag != "" {
		if err := ident.ImageRef.Check(tag); err != nil {
			return nil, err
		}
		cmd = append(cmd, "-t", tag)
	}
	if f := args.String("dockerfile"); f != "" {
		cmd = append(cmd, "-f", f)
	}
	cmd = append(cmd, ".")

	// Run from the context so a relative -f resolves inside it.
	res, err := t.engine.RunInDir(ctx, dir, cmd...)
	if err != nil {
		return nil, err
	}

	// BuildKit writes progress to stderr.
	output := strings.TrimSpace(res.StdoutString() + "\n" + res.StderrString())

	b := render.NewBuilder()
	if tag != "" {
		b.Println("Built %s", tag)
	} else {
		b.Println("Built image from %s", dir)
	}
	if output != "" {
		b.Line()
		b.Block(tailLines(output, buildTailLines))
	}
	return b.Result(), nil
}

func (t *Toolset) runContainer(ctx context.Context, args tool.Args) (*tool.Result, error) {
	image := args.String("image")
	if err := ident.ImageRef.Check(image); err != nil {
		return nil, err
	}

	detach := args.Bool("detach")
	cmd := []string{"run"}
	if detach {
		cmd = append(cmd, "-d")
	}
	if args.Bool("remove") {
		cmd = append(cmd, "--rm")
	}
	if name := args.String("name"); name != "" {
		if err := ident.ContainerName.Check(name); err != nil {
			return nil, err
		}
		cmd = append(cmd, "--name", name)
	}
	for _, p := range args.Strings("ports") {
		cmd = append(cmd, "-p", p)
	}

	env := args.StringMap("env")
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd = append(cmd, "-e", k+"="+env[k])
	}

	for _, v := range args.Strings("volumes") {
		cmd = append(cmd, "-v", v)
	}
	if n := args.String("network"); n != "" {
		cmd = append(cmd, "--network", n)
	}
	cmd = append(cmd, image)

	if c := args.String("command"); c != "" {
		words, err := shlex.Split(c)
		if err != nil {
			return nil, fmt.Errorf("parse command: %w", err)
		}
		cmd = append(cmd, words...)
	}

	out, err := t.engine.Output(ctx, cmd...)
	if err != nil {
		return nil, err
	}

	b := render.NewBuilder()
	if detach {
		b.Println("Started container %s from %s", shortID(out), image)
		return b.Result(), nil
	}
	b.Println("Container from %s exited", image)
	if out != "" {
		b.Section("Output")
		b.Block(out)
	}
	return b.Result(), nil
}

func (t *Toolset) lifecycle(verb, done string) dispatch.Handler {
	return func(ctx context.Context, args tool.Args) (*tool.Result, error) {
		name, err := containerArg(args)
		if err != nil {
			return nil, err
		}
		if _, err := t.engine.Output(ctx, verb, name); err != nil {
			return nil, err
		}
		return tool.Textf("%s container %s", done, name), nil
	}
}

func (t *Toolset) stopContainer(ctx context.Context, args tool.Args) (*tool.Result, error) {
	name, err := containerArg(args)
	if err != nil {
		return nil, err
	}
	cmd := []string{"stop"}
	if args.Has("timeout") {
		cmd = append(cmd, "-t", strconv.Itoa(args.Int("timeout")))
	}
	cmd = append(cmd, name)

	if _, err := t.engine.Output(ctx, cmd...); err != nil {
		return nil, err
	}
	return tool.Textf("Stopped container %s", name), nil
}

func (t *Toolset) removeContainer(ctx context.Context, args tool.Args) (*tool.Result, error) {
	name, err := containerArg(args)
	if err != nil {
		return nil, err
	}
	cmd := []string{"rm"}
	if args.Bool("force") {
		cmd = append(cmd, "-f")
	}
	if args.Bool("volumes") {
		cmd = append(cmd, "-v")
	}
	cmd = append(cmd, name)

	if _, err := t.engine.Output(ctx, cmd...); err != nil {
		return nil, err
	}
	return tool.Textf("Removed container %s", name), nil
}

func (t *Toolset) containerLogs(ctx context.Context, args tool.Args) (*tool.Result, error) {
	name, err := containerArg(args)
	if err != nil {
		return nil, err
	}
	cmd := []string{"logs", "--tail", strconv.Itoa(args.Int("tail"))}
	if s := args.String("since"); s != "" {
		cmd = append(cmd, "--since", s)
	}
	if args.Bool("timestamps") {
		cmd = append(cmd, "-t")
	}
	cmd = append(cmd, name)

	res, err := t.engine.Run(ctx, cmd...)
	if err != nil {
		return nil, err
	}

	b := render.NewBuilder()
	b.Header("Logs: %s", name)
	stdout, stderr := res.StdoutString(), res.StderrString()
	if stdout == "" && stderr == "" {
		b.Empty("(no output)")
		return b.Result(), nil
	}
	if stdout != "" {
		b.Print("%s\n", stdout)
	}
	if stderr != "" {
		b.Section("Stderr")
		b.Print("%s\n", stderr)
	}
	return b.Result(), nil
}

func (t *Toolset) inspectContainer(ctx context.Context, args tool.Args) (*tool.Result, error) {
	name, err := containerArg(args)
	if err != nil {
		return nil, err
	}
	res, err := t.engine.Run(ctx, "inspect", "--type", "container", name)
	if err != nil {
		return nil, err
	}
	info, err := parseInspect(res.Stdout)
	if err != nil {
		return nil, err
	}

	b := render.NewBuilder()
	b.Header("Container %s", strings.TrimPrefix(info.Name, "/"))
	b.KV("ID", shortID(info.ID))
	b.KV("Image", info.Config.Image)
	b.KV("Status", info.State.Status)
	b.KV("Running", render.BoolIcon(info.State.Running))
	if !info.State.Running {
		b.KV("Exit code", info.State.ExitCode)
	}
	if info.State.Health != nil {
		b.KV("Health", info.State.Health.Status)
	}
	b.KV("Created", info.Created)
	b.KV("Started", info.State.StartedAt)
	if len(info.Config.Cmd) > 0 {
		b.KV("Command", strings.Join(info.Config.Cmd, " "))
	}
	if p := info.HostConfig.RestartPolicy.Name; p != "" {
		b.KV("Restart", p)
	}

	if ports := info.PortLines(); len(ports) > 0 {
		b.Section("Ports")
		for _, p := range ports {
			b.Item("%s", p)
		}
	}
	if nets := info.NetworkLines(); len(nets) > 0 {
		b.Section("Networks")
		for _, n := range nets {
			b.Item("%s", n)
		}
	}
	if len(info.Mounts) > 0 {
		b.Section("Mounts")
		for _, m := range info.Mounts {
			mode := "ro"
			if m.RW {
				mode = "rw"
			}
			b.Item("%s -> %s (%s)", m.Source, m.Destination, mode)
		}
	}
	if len(info.Config.Labels) > 0 {
		b.Section("Labels")
		keys := make([]string, 0, len(info.Config.Labels))
		for k := range info.Config.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.Item("%s=%s", k, info.Config.Labels[k])
		}
	}
	return b.Result(), nil
}

func (t *Toolset) execInContainer(ctx context.Context, args tool.Args) (*tool.Result, error) {
	name, err := containerArg(args)
	if err != nil {
		return nil, err
	}
	words, err := shlex.Split(args.String("command"))
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if len(words) == 0 {
		return nil, errors.New("command is empty")
	}

	cmd := []string{"exec"}
	if w := args.String("workdir"); w != "" {
		cmd = append(cmd, "-w", w)
	}
	if u := args.String("user"); u != "" {
		cmd = append(cmd, "-u", u)
	}
	cmd = append(cmd, name)
	cmd = append(cmd, words...)

	res, err := t.engine.Run(ctx, cmd...)
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, err
	}

	b := render.NewBuilder()
	b.Println("$ %s", strings.Join(words, " "))
	b.KV("Exit code", res.ExitCode)
	if out := res.StdoutString(); out != "" {
		b.Section("Stdout")
		b.Print("%s\n", out)
	}
	if errOut := res.StderrString(); errOut != "" {
		b.Section("Stderr")
		b.Print("%s\n", errOut)
	}
	if exitErr != nil {
		return tool.ErrorText(b.String()), nil
	}
	return b.Result(), nil
}

func (t *Toolset) containerStats(ctx context.Context, args tool.Args) (*tool.Result, error) {
	cmd := []string{"stats", "--no-stream", "--format", statsFormat}
	if args.Has("container") {
		name, err := containerArg(args)
		if err != nil {
			return nil, err
		}
		cmd = append(cmd, name)
	}

	out, err := t.engine.Output(ctx, cmd...)
	if err != nil {
		return nil, err
	}
	rows := parseRows(out, 7)
	b := render.NewBuilder()
	if len(rows) == 0 {
		b.Empty("No running containers")
		return b.Result(), nil
	}
	b.Header("Resource usage")
	b.Table([]string{"name", "cpu", "memory", "mem %", "net i/o", "block i/o", "pids"}, rows)
	return b.Result(), nil
}

func (t *Toolset) removeImage(ctx context.Context, args tool.Args) (*tool.Result, error) {
	image := args.String("image")
	if err := ident.ImageRef.Check(image); err != nil {
		return nil, err
	}
	cmd := []string{"rmi"}
	if args.Bool("force") {
		cmd = append(cmd, "-f")
	}
	cmd = append(cmd, image)

	out, err := t.engine.Output(ctx, cmd...)
	if err != nil {
		return nil, err
	}
	b := render.NewBuilder()
	b.Println("Removed image %s", image)
	if out != "" {
		b.Block(out)
	}
	return b.Result(), nil
}

func (t *Toolset) listNetworks(ctx context.Context, _ tool.Args) (*tool.Result, error) {
	out, err := t.engine.Output(ctx, "network", "ls", "--format", networkFormat)
	if err != nil {
		return nil, err
	}
	rows := parseRows(out, 3)
	b := render.NewBuilder()
	if len(rows) == 0 {
		b.Empty("No networks found")
		return b.Result(), nil
	}
	b.Header("Networks (%d)", len(rows))
	b.Table([]string{"id", "name", "driver"}, rows)
	return b.Result(), nil
}

func (t *Toolset) listVolumes(ctx context.Context, _ tool.Args) (*tool.Result, error) {
	out, err := t.engine.Output(ctx, "volume", "ls", "--format", volumeFormat)
	if err != nil {
		return nil, err
	}
	rows := parseRows(out, 2)
	b := render.NewBuilder()
	if len(rows) == 0 {
		b.Empty("No volumes found")
		return b.Result(), nil
	}
	b.Header("Volumes (%d)", len(rows))
	b.Table([]string{"name", "driver"}, rows)
	return b.Result(), nil
}

func (t *Toolset) engineInfo(ctx context.Context, _ tool.Args) (*tool.Result, error) {
	format := "{{.ServerVersion}}\t{{.Containers}}\t{{.ContainersRunning}}\t{{.Images}}"
	if t.engine.Runtime() == RuntimePodman {
		format = "{{.Version.Version}}\t{{.Store.ContainerStore.Number}}\t{{.Store.ContainerStore.Running}}\t{{.Store.ImageStore.Number}}"
	}
	out, err := t.engine.Output(ctx, "info", "--format", format)
	if err != nil {
		return nil, err
	}
	rows := parseRows(out, 4)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s info: unexpected output %q", t.engine.Runtime(), out)
	}
	info := rows[0]

	b := render.NewBuilder()
	b.KV("Runtime", string(t.engine.Runtime()))
	b.KV("Server", info[0])
	b.KV("Containers", fmt.Sprintf("%s (%s running)", info[1], info[2]))
	b.KV("Images", info[3])
	return b.Result(), nil
}
