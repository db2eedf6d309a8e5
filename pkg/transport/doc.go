// Package transport is the single entry point for the vendor's app API.
//
// It assembles URLs, composes the impersonated app's headers, signs POST
// bodies, decompresses gzip responses and maps the vendor's error taxonomy
// onto typed errors. All retry and backoff policy lives with the caller;
// the transport enforces only the per-request timeout and the vendor's
// required call ordering for login.
//
// Example usage:
//
//	sess := session.New("my-seed", "username")
//	client := transport.New(sess, config.DefaultConfig(), log)
//	client.OnLogin = func(s *session.Session) {
//		blob, _ := s.DumpSettings()
//		store.Save("username", blob)
//	}
//	if err := client.Login(ctx, "username", "password"); err != nil {
//		var apiErr *errors.Error
//		if errors.As(err, &apiErr) && apiErr.Kind == errors.KindCheckpointRequired {
//			// resolve apiErr.ChallengeURL out of band
//		}
//	}
package transport
