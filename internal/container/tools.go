package container

import "github.com/joss/mcpd/internal/tool"

func containerField(desc string) tool.Field {
	return tool.Field{Name: "container", Description: desc, Param: tool.String{}, Required: true}
}

// Specs returns the container-mcp tools in listing order.
func Specs() []tool.Spec {
	return []tool.Spec{
		{
			Name:        "list_containers",
			Description: "List containers with their status and published ports",
			Parameters: []tool.Field{
				{Name: "all", Description: "Include stopped containers", Param: tool.Boolean{}, Default: false},
				{Name: "filter", Description: "Engine filter such as status=running or name=web", Param: tool.String{}},
			},
		},
		{
			Name:        "list_images",
			Description: "List local images",
			Parameters: []tool.Field{
				{Name: "all", Description: "Include intermediate images", Param: tool.Boolean{}, Default: false},
			},
		},
		{
			Name:        "pull_image",
			Description: "Pull an image from its registry",
			Slow:        true,
			Parameters: []tool.Field{
				{Name: "image", Description: "Image name, e.g. nginx or ghcr.io/org/app", Param: tool.String{}, Required: true},
				{Name: "tag", Description: "Tag to pull; defaults to the tag in image or latest", Param: tool.String{}},
			},
		},
		{
			Name:        "build_image",
			Description: "Build an image from a build context directory",
			Slow:        true,
			Parameters: []tool.Field{
				{Name: "context", Description: "Build context path", Param: tool.String{}, Required: true},
				{Name: "tag", Description: "Name and tag for the image", Param: tool.String{}},
				{Name: "dockerfile", Description: "Dockerfile path; a relative path resolves against the context", Param: tool.String{}},
			},
		},
		{
			Name:        "run_container",
			Description: "Create and start a container",
			Parameters: []tool.Field{
				{Name: "image", Description: "Image to run", Param: tool.String{}, Required: true},
				{Name: "name", Description: "Container name", Param: tool.String{}},
				{Name: "ports", Description: "Port mappings such as 8080:80", Param: tool.StringList()},
				{Name: "env", Description: "Environment variables", Param: tool.Object{}},
				{Name: "volumes", Description: "Volume mounts such as /host:/container:ro", Param: tool.StringList()},
				{Name: "network", Description: "Network to attach", Param: tool.String{}},
				{Name: "command", Description: "Command to run instead of the image default", Param: tool.String{}},
				{Name: "detach", Description: "Run in the background", Param: tool.Boolean{}, Default: true},
				{Name: "remove", Description: "Remove the container when it exits", Param: tool.Boolean{}, Default: false},
			},
		},
		{
			Name:        "start_container",
			Description: "Start a stopped container",
			Parameters:  []tool.Field{containerField("Container name or ID")},
		},
		{
			Name:        "stop_container",
			Description: "Stop a running container",
			Parameters: []tool.Field{
				containerField("Container name or ID"),
				{Name: "timeout", Description: "Seconds to wait before killing", Param: tool.Integer{}},
			},
		},
		{
			Name:        "restart_container",
			Description: "Restart a container",
			Parameters:  []tool.Field{containerField("Container name or ID")},
		},
		{
			Name:        "remove_container",
			Description: "Remove a container",
			Parameters: []tool.Field{
				containerField("Container name or ID"),
				{Name: "force", Description: "Kill a running container first", Param: tool.Boolean{}, Default: false},
				{Name: "volumes", Description: "Remove anonymous volumes", Param: tool.Boolean{}, Default: false},
			},
		},
		{
			Name:        "container_logs",
			Description: "Fetch container logs",
			Parameters: []tool.Field{
				containerField("Container name or ID"),
				{Name: "tail", Description: "Number of lines from the end", Param: tool.Integer{}, Default: int64(100)},
				{Name: "since", Description: "Only logs since a timestamp or duration such as 10m", Param: tool.String{}},
				{Name: "timestamps", Description: "Prefix lines with timestamps", Param: tool.Boolean{}, Default: false},
			},
		},
		{
			Name:        "inspect_container",
			Description: "Summarize container state, configuration, ports and mounts",
			Parameters:  []tool.Field{containerField("Container name or ID")},
		},
		{
			Name:        "exec_in_container",
			Description: "Run a command inside a running container",
			Parameters: []tool.Field{
				containerField("Container name or ID"),
				{Name: "command", Description: "Command line, split like a shell would", Param: tool.String{}, Required: true},
				{Name: "workdir", Description: "Working directory inside the container", Param: tool.String{}},
				{Name: "user", Description: "User to run as", Param: tool.String{}},
			},
		},
		{
			Name:        "container_stats",
			Description: "Show a resource usage snapshot",
			Parameters: []tool.Field{
				{Name: "container", Description: "Limit to one container", Param: tool.String{}},
			},
		},
		{
			Name:        "remove_image",
			Description: "Remove a local image",
			Parameters: []tool.Field{
				{Name: "image", Description: "Image name or ID", Param: tool.String{}, Required: true},
				{Name: "force", Description: "Remove even if containers use it", Param: tool.Boolean{}, Default: false},
			},
		},
		{
			Name:        "list_networks",
			Description: "List networks",
		},
		{
			Name:        "list_volumes",
			Description: "List volumes",
		},
		{
			Name:        "engine_info",
			Description: "Show the engine in use with its server version and resource counts",
		},
	}
}
