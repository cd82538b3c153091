package container

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/exec"
	"github.com/joss/mcpd/internal/tool"
)

func newTestToolset(t *testing.T) (*dispatch.Dispatcher, *exec.MockRunner) {
	t.Helper()
	runner := exec.NewMockRunner()
	d, err := dispatch.FromToolset(New(NewEngine(runner, RuntimeDocker, nil)))
	require.NoError(t, err)
	return d, runner
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		paths    map[string]string
		override string
		want     Runtime
		wantErr  bool
	}{
		{"prefers docker", map[string]string{"docker": "/usr/bin/docker", "podman": "/usr/bin/podman"}, "auto", RuntimeDocker, false},
		{"falls back to podman", map[string]string{"podman": "/usr/bin/podman"}, "", RuntimePodman, false},
		{"explicit podman", map[string]string{"docker": "/usr/bin/docker", "podman": "/usr/bin/podman"}, "podman", RuntimePodman, false},
		{"explicit missing", map[string]string{"docker": "/usr/bin/docker"}, "podman", RuntimeNone, true},
		{"none installed", nil, "auto", RuntimeNone, true},
		{"unknown override", nil, "lxc", RuntimeNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := exec.NewMockRunner()
			for k, v := range tt.paths {
				r.Paths[k] = v
			}
			got, err := Detect(r, tt.override)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListContainersTwoRows(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker ps", exec.MockResponse{
		Stdout: []byte("a1b2c3d4e5f6\tweb\tnginx:1.25\tUp 2 hours\t0.0.0.0:8080->80/tcp\n" +
			"f6e5d4c3b2a1\tcache\tredis:7\tUp 5 minutes\t6379/tcp\n"),
	})

	res, err := d.Call(context.Background(), "list_containers", map[string]any{"all": false})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Text(), "web")
	assert.Contains(t, res.Text(), "cache")
	assert.Contains(t, res.Text(), "CONTAINERS (2)")

	call, ok := runner.LastCall()
	require.True(t, ok)
	assert.Equal(t, "docker", call.Name)
	assert.Equal(t, []string{"ps", "--format", psFormat}, call.Args)
}

func TestListContainersArgs(t *testing.T) {
	d, runner := newTestToolset(t)

	_, err := d.Call(context.Background(), "list_containers", map[string]any{"all": true, "filter": "status=exited"})
	require.NoError(t, err)

	call, _ := runner.LastCall()
	assert.Equal(t, []string{"ps", "-a", "--filter", "status=exited", "--format", psFormat}, call.Args)
}

func TestListContainersEmpty(t *testing.T) {
	d, _ := newTestToolset(t)
	res, err := d.Call(context.Background(), "list_containers", nil)
	require.NoError(t, err)
	assert.Equal(t, "No containers found", res.Text())
}

func TestEngineStderrForwarded(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker ps", exec.MockResponse{
		Stderr:   []byte("Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?\n"),
		ExitCode: 1,
	})

	res, err := d.Call(context.Background(), "list_containers", nil)
	require.Error(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "docker ps: Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?", res.Text())
}

func TestRunContainerArgs(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker run", exec.MockResponse{Stdout: []byte("0123456789abcdef0123\n")})

	res, err := d.Call(context.Background(), "run_container", map[string]any{
		"image":   "nginx:latest",
		"name":    "web",
		"ports":   []any{"8080:80"},
		"env":     map[string]any{"B": "2", "A": "1"},
		"volumes": []any{"/srv:/usr/share/nginx/html:ro"},
		"network": "frontend",
		"command": `nginx -g "daemon off;"`,
		"remove":  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Started container 0123456789ab from nginx:latest", res.Text())

	call, _ := runner.LastCall()
	assert.Equal(t, []string{
		"run", "-d", "--rm", "--name", "web",
		"-p", "8080:80",
		"-e", "A=1", "-e", "B=2",
		"-v", "/srv:/usr/share/nginx/html:ro",
		"--network", "frontend",
		"nginx:latest",
		"nginx", "-g", "daemon off;",
	}, call.Args)
}

func TestIdentifiersRejected(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]any
	}{
		{"run_container", map[string]any{"image": "nginx", "name": "--privileged"}},
		{"run_container", map[string]any{"image": "nginx; rm -rf /"}},
		{"stop_container", map[string]any{"container": "-t0"}},
		{"container_logs", map[string]any{"container": "web app"}},
		{"pull_image", map[string]any{"image": "alpine", "tag": "3 && id"}},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			d, runner := newTestToolset(t)
			res, err := d.Call(context.Background(), tt.tool, tt.args)
			require.Error(t, err)
			assert.True(t, res.IsError)
			assert.Zero(t, runner.CallCount())
		})
	}
}

func TestLifecycleCommands(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]any
		want []string
		text string
	}{
		{"start_container", map[string]any{"container": "web"}, []string{"start", "web"}, "Started container web"},
		{"restart_container", map[string]any{"container": "web"}, []string{"restart", "web"}, "Restarted container web"},
		{"stop_container", map[string]any{"container": "web", "timeout": 5}, []string{"stop", "-t", "5", "web"}, "Stopped container web"},
		{"remove_container", map[string]any{"container": "web", "force": true, "volumes": true}, []string{"rm", "-f", "-v", "web"}, "Removed container web"},
		{"container_logs", map[string]any{"container": "web", "since": "10m", "timestamps": true}, []string{"logs", "--tail", "100", "--since", "10m", "-t", "web"}, "LOGS: WEB\n\n(no output)"},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			d, runner := newTestToolset(t)
			res, err := d.Call(context.Background(), tt.tool, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.text, res.Text())

			call, _ := runner.LastCall()
			assert.Equal(t, tt.want, call.Args)
		})
	}
}

func TestInspectSummary(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker inspect", exec.MockResponse{Stdout: []byte(`[{
		"Id": "a1b2c3d4e5f6a7b8c9d0",
		"Name": "/web",
		"Created": "2024-05-01T10:00:00Z",
		"State": {"Status": "running", "Running": true, "StartedAt": "2024-05-01T10:00:01Z", "Health": {"Status": "healthy"}},
		"Config": {"Image": "nginx:1.25", "Cmd": ["nginx", "-g", "daemon off;"], "Labels": {"tier": "front"}},
		"HostConfig": {"RestartPolicy": {"Name": "unless-stopped"}},
		"NetworkSettings": {
			"Ports": {"80/tcp": [{"HostIp": "", "HostPort": "8080"}], "443/tcp": null},
			"Networks": {"bridge": {"IPAddress": "172.17.0.2"}}
		},
		"Mounts": [{"Source": "/srv", "Destination": "/usr/share/nginx/html", "RW": false}]
	}]`)})

	res, err := d.Call(context.Background(), "inspect_container", map[string]any{"container": "web"})
	require.NoError(t, err)

	text := res.Text()
	assert.Contains(t, text, "CONTAINER WEB")
	assert.Contains(t, text, "a1b2c3d4e5f6")
	assert.Contains(t, text, "healthy")
	assert.Contains(t, text, "80/tcp -> 0.0.0.0:8080")
	assert.Contains(t, text, "443/tcp")
	assert.Contains(t, text, "bridge (172.17.0.2)")
	assert.Contains(t, text, "/srv -> /usr/share/nginx/html (ro)")
	assert.Contains(t, text, "tier=front")
	assert.NotContains(t, text, "Exit code")
}

func TestInspectBadJSON(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker inspect", exec.MockResponse{Stdout: []byte("not json")})

	res, err := d.Call(context.Background(), "inspect_container", map[string]any{"container": "web"})
	require.Error(t, err)
	assert.Contains(t, res.Text(), "parse inspect output")
}

func TestExecInContainer(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker exec", exec.MockResponse{Stdout: []byte("hello\n")})

	res, err := d.Call(context.Background(), "exec_in_container", map[string]any{
		"container": "web",
		"command":   "echo 'hello'",
		"workdir":   "/app",
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Text(), "hello")

	call, _ := runner.LastCall()
	assert.Equal(t, []string{"exec", "-w", "/app", "web", "echo", "hello"}, call.Args)
}

func TestExecNonZeroExit(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker exec", exec.MockResponse{
		Stdout:   []byte("partial\n"),
		Stderr:   []byte("ls: /nope: No such file or directory\n"),
		ExitCode: 2,
	})

	res, err := d.Call(context.Background(), "exec_in_container", map[string]any{"container": "web", "command": "ls /nope"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "2")
	assert.Contains(t, res.Text(), "No such file or directory")
	assert.Contains(t, res.Text(), "partial")
}

func TestExecRunnerFailure(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker exec", exec.MockResponse{Err: errors.New("fork/exec docker: permission denied")})

	res, err := d.Call(context.Background(), "exec_in_container", map[string]any{"container": "web", "command": "true"})
	require.Error(t, err)
	assert.Equal(t, "docker exec: fork/exec docker: permission denied", res.Text())
}

func TestPullImageSlowBudget(t *testing.T) {
	spec, ok := findSpec("pull_image")
	require.True(t, ok)
	assert.True(t, spec.Slow)

	d, runner := newTestToolset(t)
	runner.AddResponse("docker pull", exec.MockResponse{Stdout: []byte("latest: Pulling from library/alpine\nStatus: Downloaded newer image for alpine:3.20\n")})

	res, err := d.Call(context.Background(), "pull_image", map[string]any{"image": "alpine", "tag": "3.20"})
	require.NoError(t, err)
	assert.Contains(t, res.Text(), "Pulled alpine:3.20")

	call, _ := runner.LastCall()
	assert.Equal(t, []string{"pull", "alpine:3.20"}, call.Args)
}

func TestBuildImage(t *testing.T) {
	dir := t.TempDir()
	d, runner := newTestToolset(t)
	runner.AddResponse("docker build", exec.MockResponse{Stderr: []byte("#1 DONE 0.1s\n")})

	res, err := d.Call(context.Background(), "build_image", map[string]any{"context": dir, "tag": "app:dev"})
	require.NoError(t, err)
	assert.Contains(t, res.Text(), "Built app:dev")
	assert.Contains(t, res.Text(), "#1 DONE")

	call, _ := runner.LastCall()
	assert.Equal(t, []string{"build", "-t", "app:dev", "."}, call.Args)
	assert.Equal(t, dir, call.Dir)

	_, err = d.Call(context.Background(), "build_image", map[string]any{"context": dir, "dockerfile": "deploy/Dockerfile.dev"})
	require.NoError(t, err)
	call, _ = runner.LastCall()
	assert.Equal(t, []string{"build", "-f", "deploy/Dockerfile.dev", "."}, call.Args)
	assert.Equal(t, dir, call.Dir)

	res, err = d.Call(context.Background(), "build_image", map[string]any{"context": dir + "/missing"})
	require.Error(t, err)
	assert.True(t, res.IsError)
}

func TestStatsAndLists(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker stats", exec.MockResponse{Stdout: []byte("web\t0.50%\t10MiB / 1GiB\t1.00%\t1kB / 2kB\t0B / 0B\t3\n")})
	runner.AddResponse("docker network ls", exec.MockResponse{Stdout: []byte("abc\tbridge\tbridge\n")})
	runner.AddResponse("docker volume ls", exec.MockResponse{Stdout: []byte("data\tlocal\n")})
	runner.AddResponse("docker images", exec.MockResponse{Stdout: []byte("nginx\t1.25\tsha\t180MB\t2 weeks ago\n")})
	runner.AddResponse("docker info", exec.MockResponse{Stdout: []byte("26.1.0\t5\t2\t12\n")})

	tests := []struct {
		tool string
		want string
	}{
		{"container_stats", "0.50%"},
		{"list_networks", "bridge"},
		{"list_volumes", "data"},
		{"list_images", "nginx"},
		{"engine_info", "26.1.0"},
		{"engine_info", "5 (2 running)"},
	}
	for _, tt := range tests {
		res, err := d.Call(context.Background(), tt.tool, nil)
		require.NoError(t, err, tt.tool)
		assert.Contains(t, res.Text(), tt.want, tt.tool)
	}
}

func TestEngineInfo(t *testing.T) {
	d, runner := newTestToolset(t)
	runner.AddResponse("docker info", exec.MockResponse{Stdout: []byte("26.1.0\t5\t2\t12\n")})

	res, err := d.Call(context.Background(), "engine_info", nil)
	require.NoError(t, err)
	text := res.Text()
	assert.Contains(t, text, "docker")
	assert.Contains(t, text, "26.1.0")
	assert.Contains(t, text, "5 (2 running)")
	assert.Contains(t, text, "12")

	call, _ := runner.LastCall()
	assert.Equal(t, "info", call.Args[0])
	assert.Contains(t, call.Args[2], "{{.Containers}}")

	runner.AddResponse("docker info", exec.MockResponse{Stdout: []byte("\n")})
	res, err = d.Call(context.Background(), "engine_info", nil)
	require.Error(t, err)
	assert.True(t, res.IsError)
}

func TestNoRuntime(t *testing.T) {
	e := NewEngine(exec.NewMockRunner(), RuntimeNone, nil)
	_, err := e.Output(context.Background(), "ps")
	assert.ErrorIs(t, err, ErrNoRuntime)
}

func TestSubcommand(t *testing.T) {
	assert.Equal(t, "ps", subcommand([]string{"ps", "-a"}))
	assert.Equal(t, "network ls", subcommand([]string{"network", "ls"}))
	assert.Equal(t, "volume", subcommand([]string{"volume"}))
	assert.Equal(t, "", subcommand(nil))
}

func TestParseRows(t *testing.T) {
	rows := parseRows("a\tb\tc\n\nd\te\n", 3)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e", ""}}, rows)
}

func findSpec(name string) (tool.Spec, bool) {
	for _, s := range Specs() {
		if s.Name == name {
			return s, true
		}
	}
	return tool.Spec{}, false
}
