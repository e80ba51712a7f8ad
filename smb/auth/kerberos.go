package auth

import (
	"encoding/asn1"
	"fmt"

	"github.com/jfjallid/gokrb5/v8/client"
	"github.com/jfjallid/gokrb5/v8/config"
	"github.com/jfjallid/gokrb5/v8/gssapi"
	"github.com/jfjallid/gokrb5/v8/types"
)

// KerberosOid is the Kerberos v5 GSS mechanism OID.
var KerberosOid = asn1.ObjectIdentifier{1, 2, 840, 113554, 1, 2, 2}

// KerberosInitiator authenticates via Kerberos, wrapping
// github.com/jfjallid/gokrb5/v8 the way the pack's lorenz-go-smb2
// initiator_krb5.go wraps jcmturner/gokrb5/v8's gssapi2 package.
type KerberosInitiator struct {
	SPN      string
	Username string
	Domain   string
	Password string
	Keytab   []byte
	Realm    string

	client  *client.Client
	gss     *gssapi.GSSAPI
	started bool
}

func (k *KerberosInitiator) Oid() asn1.ObjectIdentifier { return KerberosOid }

func (k *KerberosInitiator) ensureClient() error {
	if k.client != nil {
		return nil
	}
	cfg, err := config.Load("/etc/krb5.conf")
	if err != nil {
		cfg = config.New()
	}
	realm := k.Realm
	if realm == "" {
		realm = k.Domain
	}
	cl := client.NewWithPassword(k.Username, realm, k.Password, cfg)
	if err := cl.Login(); err != nil {
		return fmt.Errorf("auth: kerberos login: %w", err)
	}
	k.client = cl
	return nil
}

func (k *KerberosInitiator) InitSecContext() ([]byte, error) {
	token, _, err := k.AcceptSecContext(nil)
	return token, err
}

func (k *KerberosInitiator) AcceptSecContext(serverToken []byte) ([]byte, bool, error) {
	if err := k.ensureClient(); err != nil {
		return nil, false, err
	}
	if k.gss == nil {
		k.gss = &gssapi.GSSAPI{
			Client: k.client,
			User:   types.NewPrincipalName(types.NT_PRINCIPAL, k.Username),
		}
	}
	token, complete, err := k.gss.InitSecContext(k.SPN, serverToken, false)
	if err != nil {
		return nil, false, fmt.Errorf("auth: kerberos init sec context: %w", err)
	}
	return token, complete, nil
}

func (k *KerberosInitiator) Sum(data []byte) []byte {
	if k.gss == nil {
		return nil
	}
	return k.gss.GetMIC(data)
}

func (k *KerberosInitiator) SessionKey() []byte {
	if k.gss == nil {
		return nil
	}
	key := k.gss.SessionKey()
	out := make([]byte, 16)
	copy(out, key)
	return out
}
