package envvar

const (
	// MLServeEnv is the environment variable used to determine the environment
	MLServeEnv = "MLSERVE_ENV"

	// MLServeServerHTTPPort is the environment variable used to determine the HTTP port
	MLServeServerHTTPPort = "MLSERVE_SERVER_HTTP_PORT"

	// MLServeModelsPath overrides the durable model storage root
	MLServeModelsPath = "MLSERVE_MODELS_PATH"

	// MLServeAccelerator marks an accelerator as available when set to "1"
	MLServeAccelerator = "MLSERVE_ACCELERATOR"
)
