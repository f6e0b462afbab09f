package runtime

import "os"

type ServiceOption func(*ServiceCtx)

func WithServiceTermination(ch chan os.Signal) ServiceOption {
	return func(s *ServiceCtx) {
		s.shutdownChannel = ch
	}
}

func WithWaitingForServer() ServiceOption {
	return func(s *ServiceCtx) {
		s.serverReady = make(chan struct{})
	}
}

// WithDependencies appends options applied after the defaults, so they can
// replace any dependency built from the environment.
func WithDependencies(opts ...DependencyOption) ServiceOption {
	return func(s *ServiceCtx) {
		s.dependencyOpts = append(s.dependencyOpts, opts...)
	}
}
