package oidc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	registerOut *ssooidc.RegisterClientOutput
	registerErr error

	startOut *ssooidc.StartDeviceAuthorizationOutput
	startErr error

	createOuts []*ssooidc.CreateTokenOutput
	createErrs []error
	createIn   []*ssooidc.CreateTokenInput
}

func (f *fakeAPI) RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error) {
	return f.registerOut, f.registerErr
}

func (f *fakeAPI) StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error) {
	return f.startOut, f.startErr
}

func (f *fakeAPI) CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error) {
	f.createIn = append(f.createIn, params)
	i := len(f.createIn) - 1
	var out *ssooidc.CreateTokenOutput
	var err error
	if i < len(f.createOuts) {
		out = f.createOuts[i]
	}
	if i < len(f.createErrs) {
		err = f.createErrs[i]
	}
	return out, err
}

func TestRegisterClient(t *testing.T) {
	t.Run("cleans the response", func(t *testing.T) {
		issued := time.Now().Unix()
		expires := time.Now().Add(90 * 24 * time.Hour).Unix()
		api := &fakeAPI{registerOut: &ssooidc.RegisterClientOutput{
			ClientId:              aws.String("client-id"),
			ClientSecret:          aws.String("client-secret"),
			ClientIdIssuedAt:      issued,
			ClientSecretExpiresAt: expires,
		}}

		reg, err := NewClientWithAPI(api, nil).RegisterClient(context.Background(), "aws-sso-flow@0.1", nil)
		require.NoError(t, err)
		assert.Equal(t, "client-id", reg.ClientID)
		assert.Equal(t, "client-secret", reg.ClientSecret)
		assert.Equal(t, time.Unix(issued, 0).UTC(), reg.IssuedAt)
		assert.Equal(t, time.Unix(expires, 0).UTC(), reg.ClientSecretExpiresAt)
	})

	t.Run("rejects incomplete responses", func(t *testing.T) {
		api := &fakeAPI{registerOut: &ssooidc.RegisterClientOutput{
			ClientId: aws.String("client-id"),
		}}

		_, err := NewClientWithAPI(api, nil).RegisterClient(context.Background(), "aws-sso-flow@0.1", nil)
		assert.ErrorContains(t, err, "invalid RegisterClient response")
	})

	t.Run("includes the service error code", func(t *testing.T) {
		api := &fakeAPI{registerErr: &types.InvalidRequestException{Message: aws.String("bad request")}}

		_, err := NewClientWithAPI(api, nil).RegisterClient(context.Background(), "aws-sso-flow@0.1", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "InvalidRequestException")
		assert.Contains(t, err.Error(), "bad request")
	})
}

func TestStartDeviceAuthorization(t *testing.T) {
	reg := ClientRegistration{ClientID: "client-id", ClientSecret: "client-secret"}

	t.Run("cleans the response", func(t *testing.T) {
		api := &fakeAPI{startOut: &ssooidc.StartDeviceAuthorizationOutput{
			DeviceCode:              aws.String("device-code"),
			UserCode:                aws.String("ABCD-EFGH"),
			VerificationUri:         aws.String("https://device.sso.eu-west-1.amazonaws.com/"),
			VerificationUriComplete: aws.String("https://device.sso.eu-west-1.amazonaws.com/?user_code=ABCD-EFGH"),
			ExpiresIn:               600,
			Interval:                5,
		}}

		before := time.Now()
		auth, err := NewClientWithAPI(api, nil).StartDeviceAuthorization(context.Background(), reg, "https://myorg.awsapps.com/start")
		require.NoError(t, err)
		assert.Equal(t, "device-code", auth.DeviceCode)
		assert.Equal(t, "ABCD-EFGH", auth.UserCode)
		assert.Equal(t, 5*time.Second, auth.Interval)
		assert.True(t, auth.ExpiresAt.After(before.Add(9*time.Minute)))
	})

	t.Run("rejects incomplete responses", func(t *testing.T) {
		api := &fakeAPI{startOut: &ssooidc.StartDeviceAuthorizationOutput{
			DeviceCode: aws.String("device-code"),
		}}

		_, err := NewClientWithAPI(api, nil).StartDeviceAuthorization(context.Background(), reg, "https://myorg.awsapps.com/start")
		assert.ErrorContains(t, err, "invalid StartDeviceAuthorization response")
	})
}

func TestCreateToken(t *testing.T) {
	reg := ClientRegistration{ClientID: "client-id", ClientSecret: "client-secret"}

	t.Run("issued", func(t *testing.T) {
		api := &fakeAPI{createOuts: []*ssooidc.CreateTokenOutput{{
			AccessToken:  aws.String("access-token"),
			TokenType:    aws.String("Bearer"),
			RefreshToken: aws.String("refresh-token"),
			ExpiresIn:    3600,
		}}}

		token, result, err := NewClientWithAPI(api, nil).CreateToken(context.Background(), reg, "device-code")
		require.NoError(t, err)
		assert.Equal(t, PollIssued, result)
		assert.Equal(t, "access-token", token.Token)
		assert.Equal(t, "Bearer", token.TokenType)
		assert.Equal(t, "refresh-token", token.RefreshToken)
		assert.False(t, token.IssuedAt.IsZero())
		assert.True(t, token.ExpiresAt.After(time.Now().Add(59*time.Minute)))
	})

	t.Run("sends the device-code grant", func(t *testing.T) {
		api := &fakeAPI{createErrs: []error{&types.AuthorizationPendingException{}}}

		_, _, err := NewClientWithAPI(api, nil).CreateToken(context.Background(), reg, "device-code")
		require.NoError(t, err)
		require.Len(t, api.createIn, 1)
		in := api.createIn[0]
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", aws.ToString(in.GrantType))
		assert.Equal(t, "device-code", aws.ToString(in.DeviceCode))
		assert.Equal(t, "client-id", aws.ToString(in.ClientId))
	})

	t.Run("classifies service errors", func(t *testing.T) {
		cases := []struct {
			name    string
			err     error
			want    PollResult
			wantErr bool
		}{
			{"pending", &types.AuthorizationPendingException{}, PollPending, false},
			{"slow down", &types.SlowDownException{}, PollSlowDown, false},
			{"denied", &types.AccessDeniedException{}, PollDenied, false},
			{"expired", &types.ExpiredTokenException{}, PollExpired, false},
			{"other", errors.New("connection reset"), PollError, true},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				api := &fakeAPI{createErrs: []error{tc.err}}

				_, result, err := NewClientWithAPI(api, nil).CreateToken(context.Background(), reg, "device-code")
				assert.Equal(t, tc.want, result)
				if tc.wantErr {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("rejects incomplete responses", func(t *testing.T) {
		api := &fakeAPI{createOuts: []*ssooidc.CreateTokenOutput{{
			AccessToken: aws.String("access-token"),
		}}}

		_, result, err := NewClientWithAPI(api, nil).CreateToken(context.Background(), reg, "device-code")
		assert.Equal(t, PollError, result)
		assert.ErrorContains(t, err, "invalid CreateToken response")
	})
}
