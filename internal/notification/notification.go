/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rentbase/idverify/config"
	"github.com/rentbase/idverify/internal/request"
	"github.com/sirupsen/logrus"
)

func slackMessage(err error, at time.Time) (json.RawMessage, error) {
	message := map[string]interface{}{
		"blocks": []interface{}{
			map[string]interface{}{
				"type": "header",
				"text": map[string]interface{}{
					"type":  "plain_text",
					"text":  "Error From IDVerify 🐞",
					"emoji": true,
				},
			},
			map[string]interface{}{
				"type": "section",
				"fields": []interface{}{
					map[string]string{"type": "mrkdwn", "text": fmt.Sprintf("*Error:*\n%v", err)},
				},
			},
			map[string]interface{}{
				"type": "section",
				"fields": []interface{}{
					map[string]string{"type": "mrkdwn", "text": fmt.Sprintf("*Time:*\n%v", at.Format(time.RFC822))},
				},
			},
		},
	}
	return json.Marshal(message)
}

// SlackNotification posts err to the Slack webhook at webhookURL.
func SlackNotification(webhookURL string, err error) error {
	data, marshalErr := slackMessage(err, time.Now())
	if marshalErr != nil {
		return marshalErr
	}

	payload, reqErr := request.ToJsonReq(&data)
	if reqErr != nil {
		return reqErr
	}

	req, reqErr := http.NewRequest(http.MethodPost, webhookURL, payload)
	if reqErr != nil {
		return reqErr
	}

	// Slack answers a plain "ok", not JSON.
	resp, callErr := request.Call(req, nil)
	if callErr != nil {
		return callErr
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook responded with %d", resp.StatusCode)
	}
	return nil
}

// NotifyError logs systemError and, when a Slack webhook is configured, sends
// it there. It does not block the caller.
func NotifyError(systemError error) {
	go notify(systemError)
}

func notify(systemError error) {
	logrus.Error(systemError)

	conf, err := config.Fetch()
	if err != nil {
		return
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		return
	}
	if err := SlackNotification(conf.Notification.Slack.WebhookUrl, systemError); err != nil {
		logrus.Warnf("failed to send slack notification: %v", err)
	}
}
