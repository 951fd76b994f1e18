// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package zuora

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// resolverObject is a well-known object every tenant has, used for cheap
// data-center probes.
const resolverObject = "Account"

type aquaProbeResponse struct {
	ID        string `json:"id"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// resolveBaseURL probes each candidate data center until one answers with
// anything other than 401 Unauthorized. The REST probe is a describe call;
// the AQuA probe submits a one-row export and deletes it again to keep the
// tenant's concurrent job count down.
func (client *Client) resolveBaseURL(ctx context.Context) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	candidates := CandidateURLs(client.config.Sandbox, client.config.European)
	for _, prefix := range candidates {
		var resp *Response
		if client.config.UseRest {
			resp, err = client.urlCheck(ctx, requestParams{
				method:  http.MethodGet,
				url:     prefix + "v1/describe/" + resolverObject,
				headers: client.restHeaders(),
			})
			if err != nil {
				return "", err
			}
		} else {
			query := fmt.Sprintf("select * from %s limit 1", resolverObject)
			payload := MakeAquaPayload("discover", query, client.config.PartnerID, false)
			resp, err = client.urlCheck(ctx, requestParams{
				method:  http.MethodPost,
				url:     prefix + "v1/batch-query/",
				headers: client.aquaHeaders(),
				json:    payload,
			})
			if err != nil {
				return "", err
			}
			if resp.StatusCode == http.StatusOK {
				var probe aquaProbeResponse
				if err := json.Unmarshal(resp.Body, &probe); err != nil {
					return "", Error.Wrap(err)
				}
				if probe.ErrorCode != "" {
					// AQuA signals an unrecognized partner id as a 200.
					message := probe.Message
					if message == "" {
						message = "Partner ID is not recognized." +
							" To obtain a partner ID," +
							" submit a request with Zuora Global Support"
					}
					return "", Error.New("%s", message)
				}
				deletePath := prefix + "v1/batch-query/jobs/" + probe.ID
				if _, err := client.request(ctx, requestParams{
					method:  http.MethodDelete,
					url:     deletePath,
					headers: client.aquaHeaders(),
				}); err != nil {
					client.log.Warn("failed to delete probe job", zap.String("url", deletePath), zap.Error(err))
				}
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			continue
		}
		return prefix, nil
	}

	region, api, env := "US-based", "AQuA", "Production"
	if client.config.European {
		region = "EU-based"
	}
	if client.config.UseRest {
		api = "REST"
	}
	if client.config.Sandbox {
		env = "Sandbox"
	}
	return "", BadCredentials.New(
		"could not discover %s %s %s data center url out of %v for provided credentials",
		region, api, env, candidates)
}
