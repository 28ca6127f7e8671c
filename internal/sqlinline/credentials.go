package sqlinline

// Upstream API keys stored outside the environment, keyed by backend name.

const QSelectProviderCredential = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select api_key
from provider_credentials
where name = $1::text and revoked_at is null;
`

const QUpsertProviderCredential = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into provider_credentials (name, api_key, created_at, updated_at)
values ($1::text, $2::text, now(), now())
on conflict (name) do update set
    api_key    = excluded.api_key,
    revoked_at = null,
    updated_at = now();
`

const QRevokeProviderCredential = `--sql 3f0c7b1e-52a4-4c8e-9d61-2b7a9e4f0c15
update provider_credentials
set revoked_at = now(), updated_at = now()
where name = $1::text and revoked_at is null;
`
