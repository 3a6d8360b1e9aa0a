package preview

import (
	"fmt"
	"path"
)

// ContainerSpec is the synthesized container definition for one project
// type: the Dockerfile text and the port the dev command listens on.
type ContainerSpec struct {
	Dockerfile    string
	ContainerPort int
	Memory        string
	CPUs          string
}

// Synthesize builds a minimal container definition for the detected type:
// install deps, copy tree, expose the dev port, run the development command
// with watch enabled.
func Synthesize(projectType ProjectType, files map[string]string, serviceMemory, staticMemory, cpus string) (*ContainerSpec, error) {
	switch projectType {
	case TypePythonService:
		reqPath := findByBase(files, "requirements.txt")
		appDir := path.Dir(reqPath)
		if appDir == "." {
			appDir = ""
		}
		workdir := "/app"
		if appDir != "" {
			workdir = "/app/" + appDir
		}
		dockerfile := fmt.Sprintf(`FROM python:3.12-slim
WORKDIR /app
COPY %s /tmp/requirements.txt
RUN pip install --no-cache-dir -r /tmp/requirements.txt
COPY . /app
WORKDIR %s
EXPOSE 8000
CMD ["uvicorn", "main:app", "--host", "0.0.0.0", "--port", "8000", "--reload"]
`, reqPath, workdir)
		return &ContainerSpec{
			Dockerfile:    dockerfile,
			ContainerPort: 8000,
			Memory:        serviceMemory,
			CPUs:          cpus,
		}, nil

	case TypeReactSPA, TypeNodeService:
		pkgPath := findByBase(files, "package.json")
		appDir := path.Dir(pkgPath)
		workdir := "/app"
		if appDir != "." {
			workdir = "/app/" + appDir
		}
		port := 5173
		cmd := `CMD ["npm", "run", "dev", "--", "--host", "0.0.0.0"]`
		if projectType == TypeNodeService {
			port = 3000
			cmd = `CMD ["npm", "run", "dev"]`
		}
		dockerfile := fmt.Sprintf(`FROM node:20-alpine
WORKDIR /app
COPY . /app
WORKDIR %s
RUN npm install
EXPOSE %d
%s
`, workdir, port, cmd)
		return &ContainerSpec{
			Dockerfile:    dockerfile,
			ContainerPort: port,
			Memory:        serviceMemory,
			CPUs:          cpus,
		}, nil

	case TypeStaticSite:
		dockerfile := `FROM nginx:alpine
COPY . /usr/share/nginx/html
EXPOSE 80
`
		return &ContainerSpec{
			Dockerfile:    dockerfile,
			ContainerPort: 80,
			Memory:        staticMemory,
			CPUs:          cpus,
		}, nil

	default:
		return nil, fmt.Errorf("cannot synthesize container for project type %q", projectType)
	}
}
